package repository

import (
	"encoding/json"
	"errors"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/types"
	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
)

func handleError(reqErr *resty.Response) error {
	if reqErr.StatusCode() == 404 {
		return types.ErrNotFound
	}
	if reqErr.StatusCode() == 409 {
		return types.ErrConflict
	}
	if reqErr.IsError() {
		var mytest map[string]interface{}
		uErr := json.Unmarshal(reqErr.Body(), &mytest)
		if uErr != nil {
			level.Error(global.Logger).Log("msg", "failed to unmarshal couchdb response", "err", uErr)
			return uErr
		}
		if errDesc, ok := mytest["error"].(string); ok {
			return errors.New(errDesc)
		}
		return types.ErrBadRequest
	}
	return nil
}
