package services

import (
	"context"
	"fmt"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/metrics"
	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/go-kit/log/level"
)

// AuditService reads the PLC operation log and explains what each operation changed
type AuditService struct {
	plc        *PlcClient
	queue      *queue.RequestQueue
	verifyCIDs bool
}

func NewAuditService(plc *PlcClient, rq *queue.RequestQueue) *AuditService {
	return &AuditService{
		plc:        plc,
		queue:      rq,
		verifyCIDs: global.Conf.Demesne.VerifyAuditCids,
	}
}

// FetchAuditLog returns the log of did, oldest first
func (s *AuditService) FetchAuditLog(ctx context.Context, did string) ([]*types.AuditRecord, error) {
	records, err := queue.Run(ctx, s.queue, func(ctx context.Context) ([]*types.AuditRecord, error) {
		return s.plc.GetAuditLog(ctx, did)
	})
	if err != nil {
		return nil, err
	}
	metrics.AuditLogsFetchedMetricsCount.Inc()
	return records, nil
}

// AuditReport fetches the log of did and diffs every entry against its predecessor
func (s *AuditService) AuditReport(ctx context.Context, did string) (*types.OutputAuditLog, error) {
	records, err := s.FetchAuditLog(ctx, did)
	if err != nil {
		return nil, err
	}
	return &types.OutputAuditLog{
		DID:     did,
		Entries: BuildAuditReport(records, s.verifyCIDs),
	}, nil
}

// BuildAuditReport diffs each record against the record its prev points to and
// returns the entries newest first. The cid index is built once per log.
func BuildAuditReport(records []*types.AuditRecord, verifyCIDs bool) []*types.AuditEntry {
	byCID := make(map[string]*types.AuditRecord, len(records))
	for _, r := range records {
		byCID[r.CID] = r
	}

	entries := make([]*types.AuditEntry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		entry := &types.AuditEntry{Record: record}

		prevCID := record.Operation.Prev
		switch {
		case prevCID == nil:
			entry.Changes = util.DiffOperations(record, nil)
		case byCID[*prevCID] == nil:
			entry.Changes = &types.ChangeSet{
				Inconsistent: fmt.Sprintf("previous operation %s is not in the log", *prevCID),
			}
		default:
			entry.Changes = util.DiffOperations(record, byCID[*prevCID])
		}

		if verifyCIDs {
			ok, err := util.VerifyOperationCID(record.Operation.Raw, record.CID)
			if err != nil {
				level.Warn(global.Logger).Log("msg", "cid check failed", "cid", record.CID, "err", err)
			} else {
				entry.CIDVerified = &ok
				if !ok {
					metrics.AuditCIDMismatchMetricsCount.Inc()
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
