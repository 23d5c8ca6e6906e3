package responsesvc

import (
	"context"
	"errors"
	"testing"

	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op       string
	orderID  uuid.UUID
	messages []string
}

type recordingOrders struct {
	calls []call
	err   error
}

func (r *recordingOrders) record(op string, id uuid.UUID, messages []string) error {
	r.calls = append(r.calls, call{op: op, orderID: id, messages: messages})

	return r.err
}

func (r *recordingOrders) PayOrder(_ context.Context, id uuid.UUID) error {
	return r.record("pay", id, nil)
}

func (r *recordingOrders) ApproveOrder(_ context.Context, id uuid.UUID) error {
	return r.record("approve", id, nil)
}

func (r *recordingOrders) CancelOrderPayment(_ context.Context, id uuid.UUID, messages []string) error {
	return r.record("cancelPayment", id, messages)
}

func (r *recordingOrders) CancelOrder(_ context.Context, id uuid.UUID, messages []string) error {
	return r.record("cancel", id, messages)
}

const orderID = "7b2c8a1d-1111-4c2b-9a55-2f0c4a7e6d21"

func TestProcess_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		payload  string
		op       string
		messages []string
	}{
		{
			name:    "payment completed",
			kind:    KindPayment,
			payload: `{"orderId":"` + orderID + `","paymentStatus":"COMPLETED"}`,
			op:      "pay",
		},
		{
			name:     "payment failed",
			kind:     KindPayment,
			payload:  `{"orderId":"` + orderID + `","paymentStatus":"FAILED","failureMessages":["no credit"]}`,
			op:       "cancel",
			messages: []string{"no credit"},
		},
		{
			name:    "payment cancelled",
			kind:    KindPayment,
			payload: `{"orderId":"` + orderID + `","paymentStatus":"CANCELLED"}`,
			op:      "cancel",
		},
		{
			name:    "restaurant approved",
			kind:    KindRestaurantApproval,
			payload: `{"orderId":"` + orderID + `","orderApprovalStatus":"APPROVED"}`,
			op:      "approve",
		},
		{
			name:     "restaurant rejected",
			kind:     KindRestaurantApproval,
			payload:  `{"orderId":"` + orderID + `","orderApprovalStatus":"REJECTED","failureMessages":["closed"]}`,
			op:       "cancelPayment",
			messages: []string{"closed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &recordingOrders{}
			svc := MustNewResponseService(WithOrderService(orders))

			require.NoError(t, svc.Process(context.Background(), tt.kind, []byte(tt.payload)))

			require.Len(t, orders.calls, 1)
			assert.Equal(t, tt.op, orders.calls[0].op)
			assert.Equal(t, uuid.MustParse(orderID), orders.calls[0].orderID)
			assert.Equal(t, tt.messages, orders.calls[0].messages)
		})
	}
}

func TestProcess_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		payload string
	}{
		{name: "not json", kind: KindPayment, payload: `{`},
		{name: "missing order id", kind: KindPayment, payload: `{"paymentStatus":"COMPLETED"}`},
		{name: "unknown payment status", kind: KindPayment, payload: `{"orderId":"` + orderID + `","paymentStatus":"PENDING"}`},
		{name: "unknown approval status", kind: KindRestaurantApproval, payload: `{"orderId":"` + orderID + `","orderApprovalStatus":"MAYBE"}`},
		{name: "unknown kind", kind: "delivery", payload: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &recordingOrders{}
			svc := MustNewResponseService(WithOrderService(orders))

			err := svc.Process(context.Background(), tt.kind, []byte(tt.payload))

			require.ErrorIs(t, err, ErrRejected)
			assert.Empty(t, orders.calls)
		})
	}
}

func TestProcess_AlreadyAppliedIsAccepted(t *testing.T) {
	orders := &recordingOrders{err: &errs.InvalidStateTransitionError{Operation: "pay", From: "PAID"}}
	svc := MustNewResponseService(WithOrderService(orders))

	err := svc.Process(context.Background(), KindPayment, []byte(`{"orderId":"`+orderID+`","paymentStatus":"COMPLETED"}`))

	require.NoError(t, err)
}

func TestProcess_UnknownOrderIsRejected(t *testing.T) {
	orders := &recordingOrders{err: &errs.NotFoundError{Entity: "order", ID: orderID}}
	svc := MustNewResponseService(WithOrderService(orders))

	err := svc.Process(context.Background(), KindPayment, []byte(`{"orderId":"`+orderID+`","paymentStatus":"COMPLETED"}`))

	require.ErrorIs(t, err, ErrRejected)
}

func TestProcess_TransientErrorIsReturned(t *testing.T) {
	cause := errors.New("connection refused")
	orders := &recordingOrders{err: &errs.PersistenceError{Op: "save order", Err: cause}}
	svc := MustNewResponseService(WithOrderService(orders))

	err := svc.Process(context.Background(), KindRestaurantApproval, []byte(`{"orderId":"`+orderID+`","orderApprovalStatus":"APPROVED"}`))

	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrRejected)
}
