package assetinfo

import "reflect"

// MergeUpdate applies patch onto record in place and returns record.
//
// For each patch key:
//   - absent in record: set it
//   - both list-valued: append only elements not already present,
//     preserving order
//   - both map-valued: shallow-merge, patch wins on conflicts
//   - otherwise: patch value replaces the record value
//
// The merge is idempotent: applying the same patch twice produces the
// same result as applying it once.
func MergeUpdate(record, patch map[string]interface{}) map[string]interface{} {
	for key, patchVal := range patch {
		existing, ok := record[key]
		if !ok {
			record[key] = patchVal
			continue
		}

		switch pv := patchVal.(type) {
		case []interface{}:
			if ev, ok := existing.([]interface{}); ok {
				record[key] = appendNew(ev, pv)
				continue
			}
		case map[string]interface{}:
			if ev, ok := existing.(map[string]interface{}); ok {
				for k, v := range pv {
					ev[k] = v
				}
				continue
			}
		}

		record[key] = patchVal
	}
	return record
}

// appendNew appends elements of patch not already present in list.
func appendNew(list, patch []interface{}) []interface{} {
	for _, item := range patch {
		if !containsValue(list, item) {
			list = append(list, item)
		}
	}
	return list
}

func containsValue(list []interface{}, value interface{}) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, value) {
			return true
		}
	}
	return false
}
