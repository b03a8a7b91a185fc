package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/repository"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/go-kit/log/level"
)

var errAccountServiceClosed = errors.New("account service closed")

// mutates the list in place; returns true when the list must be saved
type accountMutation func(list *types.AccountList) (bool, error)

type accountOp struct {
	ctx    context.Context
	mutate accountMutation
	reply  chan error
}

// AccountService owns the persisted account list. Every read-modify-write runs on a
// single goroutine, so concurrent callers never lose each other's updates.
type AccountService struct {
	accountRepo repository.Repository
	ops         chan *accountOp
	quit        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewAccountService(dbSelector *repository.CouchDBSelector) *AccountService {
	accountRepo, err := dbSelector.ChooseDB(repository.Accounts)
	if err != nil {
		panic(err)
	}
	s := &AccountService{
		accountRepo: accountRepo,
		ops:         make(chan *accountOp),
		quit:        make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

func (s *AccountService) writer() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case op := <-s.ops:
			op.reply <- s.apply(op)
		}
	}
}

func (s *AccountService) apply(op *accountOp) error {
	ctx, cancel := context.WithTimeout(op.ctx, 10*time.Second)
	defer cancel()

	list, err := s.load(ctx)
	if err != nil {
		return err
	}
	changed, err := op.mutate(list)
	if err != nil || !changed {
		return err
	}
	list.UnderstoreID = types.AccountsNamespace
	if sErr := s.accountRepo.Save(ctx, types.AccountsNamespace, list); sErr != nil {
		level.Error(global.Logger).Log("msg", "failed to save account list", "err", sErr)
		return fmt.Errorf("%w: %s", types.ErrStorage, sErr.Error())
	}
	return nil
}

func (s *AccountService) load(ctx context.Context) (*types.AccountList, error) {
	resp, err := s.accountRepo.GetByID(ctx, types.AccountsNamespace)
	if errors.Is(err, types.ErrNotFound) {
		return &types.AccountList{}, nil
	}
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to load account list", "err", err)
		return nil, fmt.Errorf("%w: %s", types.ErrStorage, err.Error())
	}
	var list types.AccountList
	if mErr := repository.MapToObject(resp, &list); mErr != nil {
		level.Error(global.Logger).Log("msg", "stored account list is corrupt", "err", mErr)
		return nil, fmt.Errorf("%w: %s", types.ErrStorage, mErr.Error())
	}
	return &list, nil
}

func (s *AccountService) do(ctx context.Context, mutate accountMutation) error {
	op := &accountOp{ctx: ctx, mutate: mutate, reply: make(chan error, 1)}
	select {
	case s.ops <- op:
	case <-s.quit:
		return errAccountServiceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-op.reply
}

// List returns copies of all accounts in stored order
func (s *AccountService) List(ctx context.Context) ([]*types.Account, error) {
	var out []*types.Account
	err := s.do(ctx, func(list *types.AccountList) (bool, error) {
		out = make([]*types.Account, 0, len(list.Accounts))
		for _, a := range list.Accounts {
			var c types.Account
			if err := util.DeepCopy(a, &c); err != nil {
				return false, err
			}
			out = append(out, &c)
		}
		return false, nil
	})
	return out, err
}

// Get returns a copy of the account or types.ErrNotFound
func (s *AccountService) Get(ctx context.Context, did string) (*types.Account, error) {
	var out types.Account
	err := s.do(ctx, func(list *types.AccountList) (bool, error) {
		i := list.Find(did)
		if i < 0 {
			return false, types.ErrNotFound
		}
		return false, util.DeepCopy(list.Accounts[i], &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertSession creates the account on first login or replaces its session
func (s *AccountService) UpsertSession(ctx context.Context, did string, serviceURL string, state json.RawMessage) error {
	return s.do(ctx, func(list *types.AccountList) (bool, error) {
		i := list.Find(did)
		if i < 0 {
			list.Accounts = append(list.Accounts, &types.Account{
				DID:        did,
				ServiceURL: serviceURL,
				LocalKeys:  []string{},
				Session:    state,
			})
			return true, nil
		}
		list.Accounts[i].ServiceURL = serviceURL
		list.Accounts[i].Session = state
		return true, nil
	})
}

// UpdateSession stores refreshed session state of an existing account
func (s *AccountService) UpdateSession(ctx context.Context, did string, state json.RawMessage) error {
	return s.do(ctx, func(list *types.AccountList) (bool, error) {
		i := list.Find(did)
		if i < 0 {
			return false, types.ErrNotFound
		}
		list.Accounts[i].Session = state
		return true, nil
	})
}

// AddLocalKey records that the private half of key is held on this device
func (s *AccountService) AddLocalKey(ctx context.Context, did string, key string) error {
	return s.do(ctx, func(list *types.AccountList) (bool, error) {
		i := list.Find(did)
		if i < 0 {
			return false, types.ErrNotFound
		}
		if list.Accounts[i].HasLocalKey(key) {
			return false, nil
		}
		list.Accounts[i].LocalKeys = append(list.Accounts[i].LocalKeys, key)
		return true, nil
	})
}

// Remove deletes the account. Private keys stay in the secure store.
func (s *AccountService) Remove(ctx context.Context, did string) error {
	return s.do(ctx, func(list *types.AccountList) (bool, error) {
		i := list.Find(did)
		if i < 0 {
			return false, types.ErrNotFound
		}
		list.Accounts = append(list.Accounts[:i], list.Accounts[i+1:]...)
		return true, nil
	})
}

// Close stops the writer goroutine. Pending callers get an error.
func (s *AccountService) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}
