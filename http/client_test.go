package http

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethvault/slashing-protector/protector"
	"github.com/ethvault/slashing-protector/protector/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_CheckAttestation_Valid(t *testing.T) {
	client, _ := setupClient(t)

	outcome, err := client.CheckAttestation(context.Background(), "mainnet", protector.ValidatorId{}, attestationAt(0, 1, 0x1))
	require.NoError(t, err)
	require.True(t, outcome.IsSafe(), "unexpected rejection: %s", outcome)

	// Same signing root, same target -> replay is safe.
	outcome, err = client.CheckAttestation(context.Background(), "mainnet", protector.ValidatorId{}, attestationAt(0, 1, 0x1))
	require.NoError(t, err)
	require.True(t, outcome.IsSafe())
	require.Equal(t, protector.ReasonSameVote, outcome.Reason)

	// Different signing root, same target -> double vote.
	outcome, err = client.CheckAttestation(context.Background(), "mainnet", protector.ValidatorId{}, attestationAt(0, 1, 0x2))
	require.NoError(t, err)
	require.False(t, outcome.IsSafe())
	require.Equal(t, protector.KindDoubleVote, outcome.Kind)

	// Same signing root, different key -> no conflict.
	outcome, err = client.CheckAttestation(context.Background(), "mainnet", protector.ValidatorId{0x1}, attestationAt(0, 2, 0x1))
	require.NoError(t, err)
	require.True(t, outcome.IsSafe())

	// Next epoch for the first key -> no conflict.
	outcome, err = client.CheckAttestation(context.Background(), "mainnet", protector.ValidatorId{}, attestationAt(1, 2, 0x1))
	require.NoError(t, err)
	require.True(t, outcome.IsSafe())
}

func TestClient_CheckAttestation_Concurrent(t *testing.T) {
	client, _ := setupClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			for _, j := range rand.Perm(4) {
				var validator protector.ValidatorId
				validator[0] = byte(j)

				epoch := protector.Epoch(rand.Intn(5))
				_, err := client.CheckAttestation(context.Background(), "mainnet", validator, attestationAt(epoch, epoch+1, byte(i)))
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestClient_CheckAttestation_Offline(t *testing.T) {
	client, server := setupClient(t)
	server.Close()
	_, err := client.CheckAttestation(context.Background(), "mainnet", protector.ValidatorId{}, attestationAt(0, 1, 0x1))
	require.Error(t, err)
}

// TestClient_CheckAttestation_DoubleVote mirrors the scenarios Prysm's
// attester_protection_test.go exercises for double-vote detection.
func TestClient_CheckAttestation_DoubleVote(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		existing protector.AttestationRecord
		incoming protector.AttestationRecord
		wantKind protector.Kind
	}{
		{
			name:     "different signing root at same target is a double vote",
			existing: attestationAt(0, 1, 0x1),
			incoming: attestationAt(0, 1, 0x2),
			wantKind: protector.KindDoubleVote,
		},
		{
			name:     "same signing root at same target is safe",
			existing: attestationAt(0, 1, 0x1),
			incoming: attestationAt(0, 1, 0x1),
		},
		{
			name:     "different signing root at a later target is safe",
			existing: attestationAt(0, 1, 0x1),
			incoming: attestationAt(1, 2, 0x2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupClient(t)

			outcome, err := client.CheckAttestation(ctx, "mainnet", protector.ValidatorId{}, tt.existing)
			require.NoError(t, err)
			require.True(t, outcome.IsSafe(), outcome.String())

			outcome, err = client.CheckAttestation(ctx, "mainnet", protector.ValidatorId{}, tt.incoming)
			require.NoError(t, err)
			if tt.wantKind != "" {
				require.False(t, outcome.IsSafe())
				require.Equal(t, tt.wantKind, outcome.Kind)
			} else {
				require.True(t, outcome.IsSafe())
			}
		})
	}
}

func TestClient_CheckProposal_Valid(t *testing.T) {
	client, _ := setupClient(t)
	outcome, err := client.CheckProposal(context.Background(), "mainnet", protector.ValidatorId{}, protector.BlockRecord{Slot: 32})
	require.NoError(t, err)
	require.True(t, outcome.IsSafe(), "unexpected rejection: %s", outcome)
}

func setupClient(t testing.TB) (*Client, *httptest.Server) {
	tempDir := t.TempDir()
	svc := protector.New(tempDir, store.Config{}, zap.NewNop())

	server := httptest.NewServer(NewServer(zap.NewNop(), svc))
	t.Cleanup(func() {
		server.Close()
		require.NoError(t, svc.Close())
	})

	return NewClient(http.DefaultClient, server.URL), server
}

func attestationAt(sourceEpoch, targetEpoch protector.Epoch, root byte) protector.AttestationRecord {
	return protector.AttestationRecord{
		Source:      protector.Checkpoint{Epoch: sourceEpoch},
		Target:      protector.Checkpoint{Epoch: targetEpoch},
		SigningRoot: [32]byte{root},
	}
}
