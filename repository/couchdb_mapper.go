package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-resty/resty/v2"
)

/**
* Object Mapper (from a stored document to object)
* accepts a resty response (CouchDB) or raw JSON bytes (Postgres)
**/

func MapToObject(resp interface{}, obj interface{}) error {
	var data []byte
	switch r := resp.(type) {
	case *resty.Response:
		data = r.Body()
	case []byte:
		data = r
	case json.RawMessage:
		data = r
	default:
		return errors.New("resp is not a resty.Response or raw JSON")
	}

	// Check if obj is a pointer to a struct
	val := reflect.ValueOf(obj)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return errors.New("obj is not a pointer to a struct")
	}

	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("%s cannot be mapped to the given object", data)
	}
	return nil
}
