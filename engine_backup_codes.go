package goMFA

import (
	"context"

	"github.com/MrEthical07/goMFA/internal/flows"
)

// GenerateBackupCodes replaces the principal's recovery codes with a fresh
// set and returns the plaintext codes. Only hashes are stored, so the codes
// cannot be shown again. The backup-code factor is Verified immediately.
func (e *Engine) GenerateBackupCodes(ctx context.Context, principalID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrValidation
	}

	unlock, err := e.lockPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return flows.RunGenerateBackupCodes(ctx, principalID, e.registryFlowDeps(ctx, principalID, flows.MethodBackupCodes))
}

// RemainingBackupCodes returns the number of unused backup codes, 0 for a principal without backup codes.
func (e *Engine) RemainingBackupCodes(ctx context.Context, principalID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if principalID == "" {
		return 0, ErrValidation
	}
	return flows.RunRemainingBackupCodes(ctx, principalID, e.registryFlowDeps(ctx, principalID, flows.MethodBackupCodes))
}
