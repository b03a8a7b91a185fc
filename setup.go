package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/demesne/go-demesne-server/apiroutes"
	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/keystore"
	"github.com/demesne/go-demesne-server/repository"
	"github.com/demesne/go-demesne-server/types"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// loadServerEd25519Keys reads the keys signing account route tokens. Without a
// key file the keys only live as long as the process.
func loadServerEd25519Keys(conf global.Config) {
	if conf.Demesne.ServerKeysPath == "" {
		level.Warn(global.Logger).Log("msg", "serverKeysPath not configured, using ephemeral server keys (logins do not survive a restart)")
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			panic(err)
		}
		global.PublicKey = pub
		global.PrivateKey = priv
		return
	}
	serverKeysBytes, err := os.ReadFile(conf.Demesne.ServerKeysPath)
	if err != nil {
		panic(err)
	}
	var serverKeysJson types.ServerKeys
	err = json.Unmarshal(serverKeysBytes, &serverKeysJson)
	if err != nil {
		panic(err)
	}
	decodedPrivBytes, err := base64.StdEncoding.DecodeString(serverKeysJson.PrivateKey)
	if err != nil || len(decodedPrivBytes) != ed25519.PrivateKeySize {
		panic(fmt.Sprintf("Failed to decode servers private key %v", err))
	}
	// The public key is the last 32 bytes of the private key
	global.PrivateKey = ed25519.PrivateKey(decodedPrivBytes)
	global.PublicKey = ed25519.PublicKey(decodedPrivBytes[32:])
}

// redis DB 0 holds keys and the identity cache, DB 1 the rate limiter
func newRedisClient(conf global.Config, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Host + ":" + strconv.Itoa(conf.Redis.Port),
		Username: conf.Redis.Username,
		Password: conf.Redis.Password,
		DB:       db,
	})
}

func initRedisRateLimiter(conf global.Config) *redis.Client {
	if conf.Redis.Host == "" {
		level.Warn(global.Logger).Log("msg", "redis not configured, rate limiting disabled")
		return nil
	}
	redisRateLimitClient := newRedisClient(conf, 1)

	// clears all data in the rate limiter database ignoring potential errors
	rCtx, rCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer rCancel()

	_ = redisRateLimitClient.FlushDB(rCtx).Err()

	global.RateLimiter = redis_rate.NewLimiter(redisRateLimitClient)
	return redisRateLimitClient
}

func initRedis(conf global.Config) *redis.Client {
	if conf.Redis.Host == "" {
		return nil
	}
	client := newRedisClient(conf, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("failed to connect to redis: %v", err))
	}
	return client
}

// Configure DB Repositories and create DB Selector
func ConfigDBSelector() *repository.CouchDBSelector {
	dbSelector := repository.NewCouchDBSelector()

	if global.Conf.Demesne.AccountStore == "postgres" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()
		db, err := repository.OpenPostgres(ctx, global.Conf.Postgres.DSN)
		if err != nil {
			level.Error(global.Logger).Log("msg", "failed to open postgres", "err", err)
			panic(err)
		}
		dbSelector.AddDB(repository.NewPostgresRepository(db, repository.Accounts))
		return dbSelector
	}

	// configure Repository (couchDB)
	repoUrl := global.Conf.CouchDB.Scheme + "://" + global.Conf.CouchDB.Host + ":" + strconv.Itoa(global.Conf.CouchDB.Port)
	accountsRepo, repoErr := repository.NewCouchDBRepository(repoUrl, repository.Accounts, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	if repoErr != nil {
		level.Error(global.Logger).Log("msg", "failed to create repositories", "err", repoErr)
		panic(repoErr)
	}
	dbSelector.AddDB(accountsRepo)
	return dbSelector
}

// ConfigKeystore selects where rotation private keys are held and the gate guarding them
func ConfigKeystore(conf *global.Config, env *types.Environment) (keystore.SecureStore, keystore.Gate) {
	var store keystore.SecureStore
	switch conf.Keystore.Type {
	case "redis":
		if env.RedisClient == nil {
			panic("keystore type redis requires the redis section")
		}
		sealer, err := keystore.NewSealerFromHex(conf.Keystore.EncryptionKeyHex)
		if err != nil {
			panic(fmt.Sprintf("invalid keystore encryption key: %v", err))
		}
		store = keystore.NewRedisSecureStore(env.RedisClient, sealer)
	default:
		level.Warn(global.Logger).Log("msg", "using in-memory keystore, private keys are lost on restart")
		store = keystore.NewMemorySecureStore()
	}

	var gate keystore.Gate = keystore.AllowAllGate{}
	if !conf.Keystore.RequireAuthentication {
		level.Info(global.Logger).Log("msg", "keystore.requireAuthentication is off, private key retrieval is disabled")
	}
	if conf.Keystore.RequireAuthentication {
		passcodeGate, err := keystore.NewPasscodeGate(conf.Keystore.PasscodeHashHex, conf.Keystore.PasscodeSaltHex)
		if err != nil {
			panic(err)
		}
		gate = passcodeGate
	}
	return store, gate
}

func ConfigS3Storage(conf *global.Config, env *types.Environment) {
	if conf.Storage.Type != "s3" {
		level.Info(global.Logger).Log("msg", "object storage not configured, repository backups disabled")
		return
	}
	// configure S3 storage
	credentials := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(conf.Storage.Key, conf.Storage.Secret, ""))
	awsConf, err := config.LoadDefaultConfig(context.TODO(), config.WithCredentialsProvider(credentials), config.WithRegion(conf.Storage.Region))
	if err != nil {
		panic(err)
	}
	s3Client := s3.NewFromConfig(awsConf)
	env.AddS3Uploader(manager.NewUploader(s3Client))
	env.S3Client = s3Client
}

// ConfigSessionRefresh keeps stored refresh tokens alive
func ConfigSessionRefresh(svc *apiroutes.Services, environment *types.Environment) {
	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		svc.Sessions.RefreshStoredSessions(ctx)
	}
	_, err := environment.Cron.AddFunc(fmt.Sprintf("@every %dm", global.Conf.Demesne.SessionRefreshMinutes), refresh)
	if err != nil {
		panic(err)
	}
	environment.Cron.Start()
	go refresh() // run once on startup
}
