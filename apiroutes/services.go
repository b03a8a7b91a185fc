package apiroutes

import (
	"time"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/keystore"
	"github.com/demesne/go-demesne-server/metrics"
	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/repository"
	"github.com/demesne/go-demesne-server/services"
	"github.com/demesne/go-demesne-server/types"
	"github.com/go-resty/resty/v2"
)

const upstreamTimeout = 30 * time.Second

// Services holds the long lived services shared by the REST handlers and cron jobs
type Services struct {
	Resolver *services.IdentityResolverService
	Sessions *services.SessionService
	Accounts *services.AccountService
	Keys     *services.KeyMaterialService
	Rotation *services.RotationService
	Audit    *services.AuditService
	Profiles *services.ProfileService
	Backups  *services.BackupService
	Queue    *queue.RequestQueue
}

func NewServices(dbSelector *repository.CouchDBSelector, env *types.Environment, store keystore.SecureStore, gate keystore.Gate) *Services {
	restyClient := resty.New().
		SetTimeout(upstreamTimeout).
		SetHeader("User-Agent", "demesne/"+global.Conf.Version)

	rq := queue.NewRequestQueue(global.Conf.Queue.Concurrency)
	plc := services.NewPlcClient(restyClient, global.Conf.Demesne.PlcDirectoryURL)
	pds := services.NewPdsClient(restyClient)

	accounts := services.NewAccountService(dbSelector)
	resolver := services.NewIdentityResolverService(restyClient, plc, rq, env)
	sessions := services.NewSessionService(pds, accounts)
	keys := services.NewKeyMaterialService(store, gate, global.Conf.Keystore.RequireAuthentication)

	// typed nils must not end up inside the interfaces
	var uploader services.RepoUploader
	if env.S3Uploader != nil {
		uploader = env.S3Uploader
	}
	var objects services.BackupObjects
	if env.S3Client != nil {
		objects = env.S3Client
	}

	if global.Conf.Prometheus.Enabled {
		metrics.InitMetrics()
		metrics.RegisterQueueGauges(rq.Pending, rq.Active)
	}

	return &Services{
		Resolver: resolver,
		Sessions: sessions,
		Accounts: accounts,
		Keys:     keys,
		Rotation: services.NewRotationService(pds, sessions, keys, accounts, resolver),
		Audit:    services.NewAuditService(plc, rq),
		Profiles: services.NewProfileService(restyClient, rq),
		Backups:  services.NewBackupService(pds, sessions, uploader, objects),
		Queue:    rq,
	}
}

// Close stops the account writer
func (s *Services) Close() {
	s.Accounts.Close()
}
