package payments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/internal/checkout"
	"github.com/srrfarms/storefront-api/internal/orders"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type stubStore struct {
	uploads   map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
}

func newStubStore() *stubStore {
	return &stubStore{uploads: map[string][]byte{}, types: map[string]string{}}
}

func (s *stubStore) Upload(_ context.Context, object, contentType string, body io.Reader) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.uploads[object] = data
	s.types[object] = contentType
	return nil
}

func (s *stubStore) DeleteObject(_ context.Context, object string) error {
	s.deleted = append(s.deleted, object)
	return nil
}

type stubPlacer struct {
	calls []checkout.PlaceOrderInput
	err   error
}

func (p *stubPlacer) PlaceOrder(_ context.Context, input checkout.PlaceOrderInput) (*orders.OrderDTO, error) {
	p.calls = append(p.calls, input)
	if p.err != nil {
		return nil, p.err
	}
	return &orders.OrderDTO{ID: uuid.New(), OrderNumber: "SRR-1-ABCDE"}, nil
}

func newTestService(t *testing.T, store *stubStore, placer *stubPlacer) Service {
	t.Helper()
	svc, err := NewService(Config{MaxBytes: 1 << 10}, store, placer, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateUPIOrderStoresProofAndPlacesOrder(t *testing.T) {
	store := newStubStore()
	placer := &stubPlacer{}
	svc := newTestService(t, store, placer)
	userID := uuid.New()
	txn := "UPI123"

	order, err := svc.CreateUPIOrder(context.Background(), CreateUPIOrderInput{
		UserID:        userID,
		Screenshot:    Screenshot{Body: bytes.NewReader(pngBytes), Filename: "proof.gif", Size: int64(len(pngBytes))},
		TransactionID: &txn,
		Notes:         "paid via gpay",
	})
	if err != nil {
		t.Fatalf("create upi order: %v", err)
	}
	if order.OrderNumber != "SRR-1-ABCDE" {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(placer.calls) != 1 {
		t.Fatalf("expected one checkout call, got %d", len(placer.calls))
	}
	call := placer.calls[0]
	if call.PaymentMethod != "upi" || call.UserID != userID || call.Notes != "paid via gpay" {
		t.Fatalf("unexpected checkout input %+v", call)
	}
	if call.TransactionID == nil || *call.TransactionID != txn {
		t.Fatalf("transaction id not forwarded")
	}
	if call.PaymentProofKey == nil {
		t.Fatal("expected proof key")
	}
	key := *call.PaymentProofKey
	wantPrefix := "payment-proofs/" + userID.String() + "/"
	if !strings.HasPrefix(key, wantPrefix) || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected object name %q", key)
	}
	if !bytes.Equal(store.uploads[key], pngBytes) {
		t.Fatal("uploaded bytes differ")
	}
	if store.types[key] != "image/png" {
		t.Fatalf("expected sniffed png content type, got %q", store.types[key])
	}
	if len(store.deleted) != 0 {
		t.Fatalf("unexpected cleanup %v", store.deleted)
	}
}

func TestCreateUPIOrderRejectsNonImages(t *testing.T) {
	store := newStubStore()
	placer := &stubPlacer{}
	svc := newTestService(t, store, placer)
	body := []byte("definitely just text pretending to be a png")

	_, err := svc.CreateUPIOrder(context.Background(), CreateUPIOrderInput{
		UserID:     uuid.New(),
		Screenshot: Screenshot{Body: bytes.NewReader(body), Filename: "proof.png", Size: int64(len(body))},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.uploads) != 0 || len(placer.calls) != 0 {
		t.Fatal("nothing should be uploaded or placed")
	}
}

func TestCreateUPIOrderEnforcesSizeLimit(t *testing.T) {
	store := newStubStore()
	placer := &stubPlacer{}
	svc := newTestService(t, store, placer)
	big := append(append([]byte{}, pngBytes...), make([]byte, 2<<10)...)

	cases := map[string]Screenshot{
		"declared": {Body: bytes.NewReader(big), Size: int64(len(big))},
		"streamed": {Body: bytes.NewReader(big), Size: 0},
	}
	for name, shot := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateUPIOrder(context.Background(), CreateUPIOrderInput{UserID: uuid.New(), Screenshot: shot})
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(store.uploads) != 0 {
		t.Fatal("oversized proof must not be uploaded")
	}
}

func TestCreateUPIOrderRequiresScreenshot(t *testing.T) {
	svc := newTestService(t, newStubStore(), &stubPlacer{})
	_, err := svc.CreateUPIOrder(context.Background(), CreateUPIOrderInput{UserID: uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateUPIOrderDeletesProofWhenCheckoutFails(t *testing.T) {
	store := newStubStore()
	placer := &stubPlacer{err: pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")}
	svc := newTestService(t, store, placer)

	_, err := svc.CreateUPIOrder(context.Background(), CreateUPIOrderInput{
		UserID:     uuid.New(),
		Screenshot: Screenshot{Body: bytes.NewReader(pngBytes), Size: int64(len(pngBytes))},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart) {
		t.Fatalf("expected checkout error to pass through, got %v", err)
	}
	if len(store.deleted) != 1 || *placer.calls[0].PaymentProofKey != store.deleted[0] {
		t.Fatalf("expected uploaded proof to be deleted, got %v", store.deleted)
	}
}

func TestCreateUPIOrderSurfacesUploadFailure(t *testing.T) {
	store := newStubStore()
	store.uploadErr = errors.New("bucket unavailable")
	placer := &stubPlacer{}
	svc := newTestService(t, store, placer)

	_, err := svc.CreateUPIOrder(context.Background(), CreateUPIOrderInput{
		UserID:     uuid.New(),
		Screenshot: Screenshot{Body: bytes.NewReader(pngBytes), Size: int64(len(pngBytes))},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(placer.calls) != 0 {
		t.Fatal("checkout must not run without a stored proof")
	}
}

func TestProofObjectNameFallsBackToDefaultPrefix(t *testing.T) {
	userID := uuid.New()
	name := proofObjectName(" /custom/ ", userID, "jpg")
	if !strings.HasPrefix(name, "custom/"+userID.String()+"/") || !strings.HasSuffix(name, ".jpg") {
		t.Fatalf("unexpected name %q", name)
	}
	if name := proofObjectName("", userID, "webp"); !strings.HasPrefix(name, DefaultProofPrefix+"/") {
		t.Fatalf("expected default prefix, got %q", name)
	}
}
