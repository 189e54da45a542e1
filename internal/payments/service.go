package payments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/internal/checkout"
	"github.com/srrfarms/storefront-api/internal/orders"
	"github.com/srrfarms/storefront-api/pkg/enums"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
	"github.com/srrfarms/storefront-api/pkg/logger"
	"github.com/srrfarms/storefront-api/pkg/types"
)

// DefaultProofPrefix is the object prefix used when none is configured.
const DefaultProofPrefix = "payment-proofs"

const defaultMaxBytes = 5 << 20

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, object string) error
}

type orderPlacer interface {
	PlaceOrder(ctx context.Context, input checkout.PlaceOrderInput) (*orders.OrderDTO, error)
}

// Service runs the UPI flow: store the payment proof, then place the order.
type Service interface {
	CreateUPIOrder(ctx context.Context, input CreateUPIOrderInput) (*orders.OrderDTO, error)
}

// CreateUPIOrderInput carries the multipart form of a UPI checkout.
type CreateUPIOrderInput struct {
	UserID          uuid.UUID
	Screenshot      Screenshot
	ShippingAddress *types.Address
	TransactionID   *string
	Notes           string
}

// Config bounds proof uploads.
type Config struct {
	MaxBytes    int64
	ProofPrefix string
}

type service struct {
	cfg    Config
	store  objectStore
	orders orderPlacer
	logg   *logger.Logger
}

// NewService wires the UPI flow.
func NewService(cfg Config, store objectStore, placer orderPlacer, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if placer == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if strings.TrimSpace(cfg.ProofPrefix) == "" {
		cfg.ProofPrefix = DefaultProofPrefix
	}
	return &service{cfg: cfg, store: store, orders: placer, logg: logg}, nil
}

func (s *service) CreateUPIOrder(ctx context.Context, input CreateUPIOrderInput) (*orders.OrderDTO, error) {
	proof, err := readProof(input.Screenshot, s.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}

	object := proofObjectName(s.cfg.ProofPrefix, input.UserID, proof.ext)
	if err := s.store.Upload(ctx, object, proof.contentType, bytes.NewReader(proof.data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to store payment screenshot")
	}

	order, err := s.orders.PlaceOrder(ctx, checkout.PlaceOrderInput{
		UserID:          input.UserID,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   string(enums.PaymentMethodUPI),
		Notes:           input.Notes,
		TransactionID:   input.TransactionID,
		PaymentProofKey: &object,
	})
	if err != nil {
		s.discard(ctx, object)
		return nil, err
	}
	return order, nil
}

// discard removes an orphaned proof. Failure only leaves a stray object behind.
func (s *service) discard(ctx context.Context, object string) {
	if err := s.store.DeleteObject(context.WithoutCancel(ctx), object); err != nil && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "object", object)
		s.logg.Error(logCtx, "payments.proof_cleanup_failed", err)
	}
}
