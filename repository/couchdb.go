package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/demesne/go-demesne-server/types"
	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
)

// implements Repository interface using CouchDB
type CouchDBRepository struct {
	client *resty.Client
	dbName string
}

func NewCouchDBRepository(url, DBName string, username string, password string, mock bool) (Repository, error) {
	cl := resty.New().SetBaseURL(url).SetTimeout(time.Second * 10)
	cl.SetHeader("Content-Type", "application/json")
	cl.SetHeader("Accept", "application/json")
	cl.SetHeader("User-Agent", "go-demesne-server/1.0.0")
	if username != "" {
		cl.SetBasicAuth(username, password)
	}

	if mock {
		httpmock.ActivateNonDefault(cl.GetClient())
	}

	existstRes, exsistsErr := cl.R().Head(DBName)
	if exsistsErr != nil {
		return nil, fmt.Errorf("failed to check if database exists: %s", exsistsErr.Error())
	}
	if existstRes.StatusCode() == 200 {
		return &CouchDBRepository{cl, DBName}, nil
	}

	var ok types.OK
	var dbErr2 types.CouchDBError
	// create DB since it doesn't exist
	_, err := cl.R().SetResult(&ok).SetError(&dbErr2).Put(DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create database %s: %w", DBName, err)
	}
	if dbErr2.Error != "" {
		return nil, fmt.Errorf("failed to create database %s: %s", DBName, dbErr2.Error)
	}
	if !ok.IsOK {
		return nil, fmt.Errorf("failed to create database %s", DBName)
	}
	return &CouchDBRepository{cl, DBName}, nil
}

// GetByID returns a document by its ID
func (c *CouchDBRepository) GetByID(ctx context.Context, id string) (interface{}, error) {
	response, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("%s/%s", c.dbName, id))
	if err != nil {
		return nil, err
	}
	if outErr := handleError(response); outErr != nil {
		return nil, outErr
	}
	return response, nil
}

// Save creates a new doc or updates an existing one (data must carry the current _rev on update)
func (c *CouchDBRepository) Save(ctx context.Context, docID string, data interface{}) error {
	var ok types.OK
	response, err := c.client.R().SetContext(ctx).SetBody(data).SetResult(&ok).Put(fmt.Sprintf("%s/%s", c.dbName, docID))
	if err != nil {
		return err
	}
	if outErr := handleError(response); outErr != nil {
		return outErr
	}
	return nil
}

// Delete deletes a document by its ID
func (c *CouchDBRepository) Delete(ctx context.Context, id string) error {
	doc, err := c.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var base types.BaseDocument
	if mErr := MapToObject(doc, &base); mErr != nil {
		return mErr
	}

	response, err := c.client.R().SetContext(ctx).SetQueryParam("rev", base.UnderscoreRev).Delete(fmt.Sprintf("%s/%s", c.dbName, id))
	if err != nil {
		return err
	}
	return handleError(response)
}

// return name of the database
func (c *CouchDBRepository) GetDBName() string {
	return c.dbName
}
