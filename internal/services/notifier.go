package services

import (
	"context"

	"km-backend/internal/models"
)

// SettlementNotifier is told about committed settlements and allocations
type SettlementNotifier interface {
	NotifySettlement(ctx context.Context, event models.SettlementEvent)
}

// Notifiers fans an event out to every non-nil notifier in order
type Notifiers []SettlementNotifier

func (n Notifiers) NotifySettlement(ctx context.Context, event models.SettlementEvent) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.NotifySettlement(ctx, event)
		}
	}
}

type NotifierFunc func(ctx context.Context, event models.SettlementEvent)

func (f NotifierFunc) NotifySettlement(ctx context.Context, event models.SettlementEvent) {
	f(ctx, event)
}
