package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/metrics"
	"github.com/demesne/go-demesne-server/types"
	"github.com/go-kit/log/level"
)

// RepoUploader is the subset of *manager.Uploader used for backups
type RepoUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// BackupObjects is the subset of *s3.Client used to list and delete backups
type BackupObjects interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var errBackupStorageMissing = fmt.Errorf("%w: backup storage is not configured", types.ErrPrecondition)

// BackupService exports account repositories as CAR files into object storage
type BackupService struct {
	pds      *PdsClient
	sessions *SessionService
	uploader RepoUploader
	objects  BackupObjects
	bucket   string
}

func NewBackupService(pds *PdsClient, sessions *SessionService, uploader RepoUploader, objects BackupObjects) *BackupService {
	return &BackupService{
		pds:      pds,
		sessions: sessions,
		uploader: uploader,
		objects:  objects,
		bucket:   global.Conf.Storage.Bucket,
	}
}

func backupPrefix(did string) string {
	return did + "/backups/"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// CreateBackup streams the repository of did from its PDS into the bucket
func (s *BackupService) CreateBackup(ctx context.Context, did string) (*types.Backup, error) {
	if s.uploader == nil {
		return nil, errBackupStorageMissing
	}
	session, err := s.sessions.Session(ctx, did)
	if err != nil {
		return nil, err
	}
	repo, err := s.pds.GetRepo(ctx, session.ServiceURL, session.AccessJwt, did)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
	}
	defer repo.Close()

	created := time.Now().UTC()
	key := backupPrefix(did) + created.Format(time.RFC3339) + ".car"
	body := &countingReader{r: repo}
	_, uErr := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/vnd.ipld.car"),
	})
	if uErr != nil {
		level.Error(global.Logger).Log("msg", "failed to upload repository backup", "did", did, "err", uErr)
		return nil, fmt.Errorf("%w: %s", types.ErrStorage, uErr.Error())
	}
	metrics.BackupsCreatedMetricsCount.Inc()
	return &types.Backup{DID: did, Key: key, Size: body.n, Created: created}, nil
}

// ListBackups returns the stored backups of did, newest first
func (s *BackupService) ListBackups(ctx context.Context, did string) ([]*types.Backup, error) {
	if s.objects == nil {
		return nil, errBackupStorageMissing
	}
	backups := []*types.Backup{}
	paginator := s3.NewListObjectsV2Paginator(s.objects, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(backupPrefix(did)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
				return nil, types.ErrNotFound
			}
			level.Error(global.Logger).Log("msg", "failed to list backups", "did", did, "err", err)
			return nil, fmt.Errorf("%w: %s", types.ErrStorage, err.Error())
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".car") {
				continue
			}
			backups = append(backups, &types.Backup{
				DID:     did,
				Key:     key,
				Size:    aws.ToInt64(obj.Size),
				Created: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

// DeleteBackup removes one stored backup of did. Keys outside the backup prefix
// of did are rejected.
func (s *BackupService) DeleteBackup(ctx context.Context, did string, key string) error {
	if s.objects == nil {
		return errBackupStorageMissing
	}
	if !strings.HasPrefix(key, backupPrefix(did)) || !strings.HasSuffix(key, ".car") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %s is not a backup of %s", types.ErrInvalidInput, key, did)
	}

	// DeleteObject succeeds for missing keys, so look the backup up first
	found, err := s.objects.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to look up backup", "did", did, "key", key, "err", err)
		return fmt.Errorf("%w: %s", types.ErrStorage, err.Error())
	}
	if found == nil || len(found.Contents) == 0 || aws.ToString(found.Contents[0].Key) != key {
		return fmt.Errorf("%w: backup %s", types.ErrNotFound, key)
	}

	if _, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		level.Error(global.Logger).Log("msg", "failed to delete backup", "did", did, "key", key, "err", err)
		return fmt.Errorf("%w: %s", types.ErrStorage, err.Error())
	}
	level.Info(global.Logger).Log("msg", "backup deleted", "did", did, "key", key)
	return nil
}
