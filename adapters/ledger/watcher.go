package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// Watcher relays contract logs onto the event bus, one watch per event name.
type Watcher struct {
	contract  *bind.BoundContract
	publisher ports.EventPublisher
	logger    watermill.LoggerAdapter
	events    []core.EventName
}

// NewWatcher creates a log watcher for the contract at address
func NewWatcher(address common.Address, filterer bind.ContractFilterer, publisher ports.EventPublisher, logger watermill.LoggerAdapter) (*Watcher, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	return &Watcher{
		contract:  bind.NewBoundContract(address, parsed, nil, nil, filterer),
		publisher: publisher,
		logger:    logger,
		events:    core.MirroredEvents,
	}, nil
}

// Run watches every mirrored event until ctx is done or a watch fails
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(w.events))
	var wg sync.WaitGroup

	for _, name := range w.events {
		logs, sub, err := w.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, string(name))
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to watch %s: %w", name, err)
		}

		wg.Add(1)
		go func(name core.EventName) {
			defer wg.Done()
			defer sub.Unsubscribe()

			for {
				select {
				case <-ctx.Done():
					return
				case err := <-sub.Err():
					if err != nil {
						errs <- fmt.Errorf("watch %s: %w", name, err)
						cancel()
					}
					return
				case l := <-logs:
					w.relay(ctx, name, l)
				}
			}
		}(name)
	}

	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return err
	}
	return ctx.Err()
}

func (w *Watcher) relay(ctx context.Context, name core.EventName, l types.Log) {
	fields := watermill.LogFields{
		"event":   string(name),
		"tx_hash": l.TxHash.Hex(),
		"block":   l.BlockNumber,
	}

	event, err := w.decode(name, l)
	if err != nil {
		w.logger.Info("Skipping ledger log", fields.Add(watermill.LogFields{"reason": err.Error()}))
		return
	}

	if err := w.publisher.PublishLedgerEvent(ctx, event); err != nil {
		w.logger.Error("Failed to relay ledger event", err, fields)
	}
}

func (w *Watcher) decode(name core.EventName, l types.Log) (core.LedgerEvent, error) {
	if l.Removed {
		return core.LedgerEvent{}, fmt.Errorf("%w: log removed by reorg", core.ErrEventDecodeSkipped)
	}

	args := map[string]interface{}{}
	if err := w.contract.UnpackLogIntoMap(args, string(name), l); err != nil {
		return core.LedgerEvent{}, fmt.Errorf("%w: %v", core.ErrEventDecodeSkipped, err)
	}

	event := core.LedgerEvent{
		Name:        name,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
	}

	var err error
	switch name {
	case core.EventTransferLimitSet:
		event.Subject, err = addressArg(args, "user")
		if err == nil {
			err = amountArg(args, "limit", &event)
		}
	case core.EventAddressVerified, core.EventVerificationRemoved,
		core.EventAddressBlocked, core.EventAddressUnblocked:
		event.Subject, err = addressArg(args, "user")
	case core.EventIdentityProviderAdded, core.EventIdentityProviderRemoved:
		event.Subject, err = addressArg(args, "idp")
	case core.EventAdminStatusChanged:
		event.Subject, err = addressArg(args, "admin")
		if err == nil {
			kind, ok := args["adminType"].(uint8)
			status, ok2 := args["status"].(bool)
			if !ok || !ok2 {
				err = fmt.Errorf("adminType/status have unexpected types %T/%T", args["adminType"], args["status"])
			}
			event.AdminKind = core.AdminKind(kind)
			event.Status = status
		}
	case core.EventTokensMinted:
		event.Subject, err = addressArg(args, "to")
		if err == nil {
			err = amountArg(args, "amount", &event)
		}
	case core.EventTokensTransferred:
		event.Subject, err = addressArg(args, "from")
		if err == nil {
			event.Counterparty, err = addressArg(args, "to")
		}
		if err == nil {
			err = amountArg(args, "amount", &event)
		}
	default:
		err = fmt.Errorf("unknown event %q", name)
	}
	if err != nil {
		return core.LedgerEvent{}, fmt.Errorf("%w: %v", core.ErrEventDecodeSkipped, err)
	}

	return event, nil
}

func addressArg(args map[string]interface{}, key string) (common.Address, error) {
	v, ok := args[key].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s has unexpected type %T", key, args[key])
	}
	return v, nil
}

func amountArg(args map[string]interface{}, key string, event *core.LedgerEvent) error {
	v, ok := args[key].(*big.Int)
	if !ok {
		return fmt.Errorf("%s has unexpected type %T", key, args[key])
	}
	return setUint256(&event.Amount, v)
}
