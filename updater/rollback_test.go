package updater

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/moffa90/go-sdupdater/espimage"
)

func imageMetadata(t *testing.T, img []byte) espimage.Metadata {
	t.Helper()
	meta, err := espimage.Parse(bytes.NewReader(img), 0, int64(len(img)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return meta
}

func TestTryRollback(t *testing.T) {
	menu := testImage(t, 0x11, 4096)
	sameSizeOther := testImage(t, 0x22, 4096)
	otherSize := testImage(t, 0x11, 8192)

	tests := []struct {
		name         string
		reference    []byte // image whose metadata is saved, nil for none
		candidate    []byte
		canRollback  bool
		rollbackErr  error
		restartErr   error
		want         Outcome
		wantErr      bool
		wantRollback int
		wantRestart  int
		wantDebug    bool // digest comparison reached
	}{
		{
			name:        "no reference recorded",
			candidate:   menu,
			canRollback: true,
			want:        OutcomeNoReference,
		},
		{
			name:        "size differs",
			reference:   menu,
			candidate:   otherSize,
			canRollback: true,
			want:        OutcomeSizeMismatch,
		},
		{
			name:        "empty candidate slot",
			reference:   menu,
			candidate:   []byte{},
			canRollback: true,
			want:        OutcomeSizeMismatch,
		},
		{
			name:        "same size other digest",
			reference:   menu,
			candidate:   sameSizeOther,
			canRollback: true,
			want:        OutcomeDigestMismatch,
			wantDebug:   true,
		},
		{
			name:        "match but rollback unavailable",
			reference:   menu,
			candidate:   menu,
			canRollback: false,
			want:        OutcomeRollbackUnavailable,
			wantDebug:   true,
		},
		{
			name:         "match and rollback refused",
			reference:    menu,
			candidate:    menu,
			canRollback:  true,
			rollbackErr:  errors.New("otadata write failed"),
			want:         OutcomeRollbackUnavailable,
			wantErr:      true,
			wantRollback: 1,
			wantDebug:    true,
		},
		{
			name:         "match reverts",
			reference:    menu,
			candidate:    menu,
			canRollback:  true,
			want:         OutcomeReverted,
			wantRollback: 1,
			wantRestart:  1,
			wantDebug:    true,
		},
		{
			name:         "match reverts but restart fails",
			reference:    menu,
			candidate:    menu,
			canRollback:  true,
			restartErr:   errors.New("reset line stuck"),
			want:         OutcomeReverted,
			wantErr:      true,
			wantRollback: 1,
			wantRestart:  1,
			wantDebug:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &MockLogger{}
			up, dev, refs := newTestUpdater(t, WithLogger(logger))
			dev.nextImage = tt.candidate
			dev.canRollback = tt.canRollback
			dev.rollbackErr = tt.rollbackErr
			dev.restartErr = tt.restartErr

			if tt.reference != nil {
				meta := imageMetadata(t, tt.reference)
				if err := refs.Save(meta.Length, meta.Digest); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}

			got, err := up.TryRollback(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("TryRollback() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TryRollback() = %v, want %v", got, tt.want)
			}
			if got.Reverted() != (tt.want == OutcomeReverted) {
				t.Errorf("Reverted() = %v", got.Reverted())
			}
			if dev.rollbackCalls != tt.wantRollback {
				t.Errorf("rollback calls = %d, want %d", dev.rollbackCalls, tt.wantRollback)
			}
			if dev.restartCalls != tt.wantRestart {
				t.Errorf("restart calls = %d, want %d", dev.restartCalls, tt.wantRestart)
			}
			if reached := contains(logger.debugMsgs, "sizes match, checking digest"); reached != tt.wantDebug {
				t.Errorf("digest comparison reached = %v, want %v", reached, tt.wantDebug)
			}
		})
	}
}

func TestTryRollback_LogMessages(t *testing.T) {
	menu := testImage(t, 0x11, 256)

	t.Run("no reference", func(t *testing.T) {
		logger := &MockLogger{}
		up, _, _ := newTestUpdater(t, WithLogger(logger))
		if _, err := up.TryRollback(context.Background()); err != nil {
			t.Fatal(err)
		}
		want := "no reference image size recorded, cannot check whether rollback is worth a try"
		if !contains(logger.infoMsgs, want) {
			t.Errorf("info messages = %v", logger.infoMsgs)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		logger := &MockLogger{}
		up, dev, refs := newTestUpdater(t, WithLogger(logger))
		dev.nextImage = menu
		meta := imageMetadata(t, menu)
		if err := refs.Save(meta.Length, meta.Digest); err != nil {
			t.Fatal(err)
		}
		if _, err := up.TryRollback(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !contains(logger.errorMsgs, "rollback desired but not available") {
			t.Errorf("error messages = %v", logger.errorMsgs)
		}
	})

	t.Run("reverted", func(t *testing.T) {
		logger := &MockLogger{}
		up, dev, refs := newTestUpdater(t, WithLogger(logger))
		dev.nextImage = menu
		dev.canRollback = true
		meta := imageMetadata(t, menu)
		if err := refs.Save(meta.Length, meta.Digest); err != nil {
			t.Fatal(err)
		}
		if _, err := up.TryRollback(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !contains(logger.infoMsgs, "rollback done, restarting") {
			t.Errorf("info messages = %v", logger.infoMsgs)
		}
		// rollback precedes restart
		var order []string
		for _, c := range dev.calls {
			if c == "rollback" || c == "restart" {
				order = append(order, c)
			}
		}
		if len(order) != 2 || order[0] != "rollback" || order[1] != "restart" {
			t.Errorf("call order = %v", order)
		}
	})
}

func TestTryRollback_Cancelled(t *testing.T) {
	menu := testImage(t, 0x11, 256)
	up, dev, refs := newTestUpdater(t)
	dev.nextImage = menu
	dev.canRollback = true
	meta := imageMetadata(t, menu)
	if err := refs.Save(meta.Length, meta.Digest); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := up.TryRollback(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("TryRollback() error = %v, want context.Canceled", err)
	}
	if got.Reverted() {
		t.Error("cancelled rollback must not report Reverted")
	}
	if dev.rollbackCalls != 0 || dev.restartCalls != 0 {
		t.Errorf("rollback/restart calls = %d/%d, want 0/0", dev.rollbackCalls, dev.restartCalls)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{OutcomeNoReference, "no reference"},
		{OutcomeSizeMismatch, "size mismatch"},
		{OutcomeDigestMismatch, "digest mismatch"},
		{OutcomeRollbackUnavailable, "rollback unavailable"},
		{OutcomeReverted, "reverted"},
		{Outcome(42), "outcome(42)"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(tt.o), got, tt.want)
		}
	}
}
