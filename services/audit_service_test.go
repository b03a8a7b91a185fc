package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const auditLogJSON = `[
  {"did":"did:plc:abc123","cid":"bafygenesis","nullified":false,"createdAt":"2023-04-01T10:00:00.000Z",
   "operation":{"type":"plc_operation","sig":"s1","prev":null,
     "rotationKeys":["did:key:zA","did:key:zB"],"alsoKnownAs":["at://alice.test"],
     "verificationMethods":{"atproto":"did:key:zV"},
     "services":{"atproto_pds":{"type":"AtprotoPersonalDataServer","endpoint":"https://pds.one"}}}},
  {"did":"did:plc:abc123","cid":"bafysecond","nullified":false,"createdAt":"2023-05-01T10:00:00.000Z",
   "operation":{"type":"plc_operation","sig":"s2","prev":"bafygenesis",
     "rotationKeys":["did:key:zB","did:key:zC"],"alsoKnownAs":["at://alice.example.com"],
     "verificationMethods":{"atproto":"did:key:zV"},
     "services":{"atproto_pds":{"type":"AtprotoPersonalDataServer","endpoint":"https://pds.one"}}}},
  {"did":"did:plc:abc123","cid":"bafythird","nullified":false,"createdAt":"2023-06-01T10:00:00.000Z",
   "operation":{"type":"plc_operation","sig":"s3","prev":"bafysecond",
     "rotationKeys":["did:key:zB","did:key:zC"],"alsoKnownAs":["at://alice.example.com"],
     "verificationMethods":{"atproto":"did:key:zV"},
     "services":{"atproto_pds":{"type":"AtprotoPersonalDataServer","endpoint":"https://pds.one"}}}}
]`

func TestFetchAuditLogAndReport(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", plcURL+"/did:plc:abc123/log/audit",
		httpmock.NewStringResponder(200, auditLogJSON))

	audit := NewAuditService(NewPlcClient(rc, plcURL), queue.NewRequestQueue(5))
	report, err := audit.AuditReport(context.Background(), testDID)
	require.NoError(t, err)
	require.Len(t, report.Entries, 3)

	// newest first
	third, second, genesis := report.Entries[0], report.Entries[1], report.Entries[2]
	assert.Equal(t, "bafythird", third.Record.CID)

	assert.True(t, genesis.Changes.Genesis)
	assert.Equal(t, []string{"did:key:zA", "did:key:zB"}, genesis.Changes.Initial.RotationKeys)

	assert.Equal(t, []string{"did:key:zC"}, second.Changes.AddedKeys)
	assert.Equal(t, []string{"did:key:zA"}, second.Changes.RemovedKeys)
	assert.Equal(t, &types.HandleChange{From: "at://alice.test", To: "at://alice.example.com"}, second.Changes.HandleChange)
	assert.False(t, second.Changes.ServicesChanged)

	// re-signed unchanged state
	assert.True(t, third.Changes.IsEmpty())
	assert.Nil(t, third.CIDVerified)
}

func TestAuditReportMissingPrev(t *testing.T) {
	var records []*types.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(auditLogJSON), &records))

	entries := BuildAuditReport(records[1:], false)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[1].Changes.Inconsistent)
	assert.True(t, entries[0].Changes.IsEmpty())
}

func TestAuditReportVerifiesCIDs(t *testing.T) {
	var records []*types.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(auditLogJSON), &records))

	actual, err := util.OperationCID(records[0].Operation.Raw)
	require.NoError(t, err)
	records[0].CID = actual
	records[1].Operation.Prev = &actual

	entries := BuildAuditReport(records, true)
	require.NotNil(t, entries[2].CIDVerified)
	assert.True(t, *entries[2].CIDVerified)
	require.NotNil(t, entries[0].CIDVerified)
	assert.False(t, *entries[0].CIDVerified)
	assert.Equal(t, []string{"did:key:zC"}, entries[1].Changes.AddedKeys)
}

func TestFetchAuditLogRejectsMalformedRecords(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", plcURL+"/did:plc:abc123/log/audit",
		httpmock.NewStringResponder(200, `[{"did":"did:plc:abc123","operation":{"type":"plc_operation"}}]`))

	audit := NewAuditService(NewPlcClient(rc, plcURL), queue.NewRequestQueue(5))
	_, err := audit.FetchAuditLog(context.Background(), testDID)
	assert.ErrorIs(t, err, types.ErrInvalidResponse)
}
