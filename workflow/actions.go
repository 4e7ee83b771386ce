package workflow

import (
	"fmt"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/models"
)

type ActionType string

// Admin-perspective action types, in priority order.
const (
	ActionNewOrderReview     ActionType = "NEW_ORDER_REVIEW"
	ActionNeedsPO            ActionType = "NEEDS_PO"
	ActionDepositStageUpdate ActionType = "DEPOSIT_STAGE_UPDATE"
	ActionCloseOrder         ActionType = "CLOSE_ORDER"
)

// Client-perspective action types.
const (
	ActionQuotationReview   ActionType = "QUOTATION_REVIEW"
	ActionDepositPaymentDue ActionType = "DEPOSIT_PAYMENT_DUE"
	ActionFinalPaymentDue   ActionType = "FINAL_PAYMENT_DUE"
)

// Action is one outstanding task surfaced to an actor. ID is stable per
// {orderId, actionType}; AckKey is the suppression key, scoped per quotation
// instance for QUOTATION_REVIEW so a later quotation re-surfaces even after
// an earlier one was acknowledged.
type Action struct {
	ID      string     `json:"id"`
	OrderId int        `json:"order_id"`
	Type    ActionType `json:"type"`
	AckKey  string     `json:"ack_key"`
	Label   string     `json:"label"`
}

// AckSet tests acknowledgement membership. Resolution never mutates it.
type AckSet map[string]bool

func (s AckSet) Has(key string) bool {
	if s == nil {
		return false
	}
	return s[key]
}

func actionID(orderId int, t ActionType) string {
	return fmt.Sprintf("%d_%s", orderId, t)
}

// ResolveAdminActions derives the outstanding admin tasks for one snapshot.
// Pure and idempotent: identical snapshots always yield identical lists.
// Admin actions are never acknowledgement-suppressed; they clear only when
// the underlying condition clears.
func ResolveAdminActions(snap *OrderSnapshot) []Action {
	var actions []Action

	if snap.Status == models.OrderStatusPending && snap.Stage == models.StageReceived {
		actions = append(actions, Action{
			ID:      actionID(snap.OrderId, ActionNewOrderReview),
			OrderId: snap.OrderId,
			Type:    ActionNewOrderReview,
			AckKey:  actionID(snap.OrderId, ActionNewOrderReview),
			Label:   "New order awaiting review",
		})
	}

	if snap.HasAcceptedQuotation && !snap.HasPurchaseOrder {
		actions = append(actions, Action{
			ID:      actionID(snap.OrderId, ActionNeedsPO),
			OrderId: snap.OrderId,
			Type:    ActionNeedsPO,
			AckKey:  actionID(snap.OrderId, ActionNeedsPO),
			Label:   "Quotation accepted, purchase order needed",
		})
	}

	// Payment recorded but stage not advanced: a desync the admin must
	// resolve.
	if snap.DepositPaid && snap.Stage == models.StageAwaitingDeposit {
		actions = append(actions, Action{
			ID:      actionID(snap.OrderId, ActionDepositStageUpdate),
			OrderId: snap.OrderId,
			Type:    ActionDepositStageUpdate,
			AckKey:  actionID(snap.OrderId, ActionDepositStageUpdate),
			Label:   "Deposit recorded, stage needs updating",
		})
	}

	if snap.FinalPaymentReceived && snap.Status != models.OrderStatusCompleted {
		actions = append(actions, Action{
			ID:      actionID(snap.OrderId, ActionCloseOrder),
			OrderId: snap.OrderId,
			Type:    ActionCloseOrder,
			AckKey:  actionID(snap.OrderId, ActionCloseOrder),
			Label:   "Final payment received, order can be closed",
		})
	}

	return actions
}

// ResolveClientActions derives the outstanding client tasks for one
// snapshot, suppressing entries the client has acknowledged. Pure function
// of (snapshot, ackSet); acknowledgement is advisory and never mutates order
// state.
func ResolveClientActions(snap *OrderSnapshot, acks AckSet) []Action {
	var actions []Action

	if snap.HasPendingQuotationReview {
		// One entry per undecided quotation; per-instance ids and ack keys
		// so a fresh quotation is never suppressed by an earlier
		// acknowledgement and list entries stay uniquely keyed.
		for _, qid := range snap.PendingQuotationIds {
			ackKey := fmt.Sprintf("%d_%s_q%d", snap.OrderId, ActionQuotationReview, qid)
			if acks.Has(ackKey) {
				continue
			}
			actions = append(actions, Action{
				ID:      ackKey,
				OrderId: snap.OrderId,
				Type:    ActionQuotationReview,
				AckKey:  ackKey,
				Label:   "A quotation is awaiting your review",
			})
		}
	}

	if snap.DepositOutstanding {
		ackKey := actionID(snap.OrderId, ActionDepositPaymentDue)
		if !acks.Has(ackKey) {
			actions = append(actions, Action{
				ID:      ackKey,
				OrderId: snap.OrderId,
				Type:    ActionDepositPaymentDue,
				AckKey:  ackKey,
				Label:   "Deposit payment is due",
			})
		}
	}

	if snap.FinalPaymentOutstanding {
		ackKey := actionID(snap.OrderId, ActionFinalPaymentDue)
		if !acks.Has(ackKey) {
			actions = append(actions, Action{
				ID:      ackKey,
				OrderId: snap.OrderId,
				Type:    ActionFinalPaymentDue,
				AckKey:  ackKey,
				Label:   "Final payment is due",
			})
		}
	}

	return actions
}

/* Acknowledgement store (redis set per client) */

func clientAckSetKey(clientId int) string {
	return fmt.Sprintf("order_acks:client:%d", clientId)
}

// LoadClientAckSet reads the client's acknowledgement set. A missing redis
// connection degrades to an empty set rather than failing the view.
func LoadClientAckSet(clientId int) (AckSet, error) {
	members, err := config.GetRedisSetMembers(clientAckSetKey(clientId))
	if err != nil {
		return nil, err
	}
	set := make(AckSet, len(members))
	for _, m := range members {
		set[m] = true
	}
	return set, nil
}

// AcknowledgeClientAction marks one action key as viewed.
func AcknowledgeClientAction(clientId int, ackKey string) error {
	if ackKey == "" {
		return fmt.Errorf("ack key is required")
	}
	return config.AddRedisSet(clientAckSetKey(clientId), ackKey)
}
