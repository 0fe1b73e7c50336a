package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// SerializeModel converts any model to []byte using JSON serialization,
// for storage in Redis or other byte-based storage systems.
//
// Example usage:
//
//	snapshot := &models.HactSnapshot{...}
//	data, err := SerializeModel(snapshot)
//	if err != nil {
//	    return fmt.Errorf("failed to serialize snapshot: %w", err)
//	}
func SerializeModel[T any](model T) ([]byte, error) {
	value := reflect.ValueOf(model)
	if value.Kind() == reflect.Pointer && value.IsNil() {
		return nil, fmt.Errorf("cannot serialize nil pointer")
	}

	data, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}

	return data, nil
}

// DeserializeModel converts []byte back to a model of type T, the inverse
// of SerializeModel for cache read paths.
//
// Example usage:
//
//	var snapshot models.HactSnapshot
//	err := DeserializeModel(data, &snapshot)
//	if err != nil {
//	    return fmt.Errorf("failed to deserialize snapshot: %w", err)
//	}
func DeserializeModel[T any](data []byte, target *T) error {
	if len(data) == 0 {
		return fmt.Errorf("cannot deserialize empty data")
	}

	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return nil
}
