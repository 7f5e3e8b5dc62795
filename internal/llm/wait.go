package llm

import (
	"context"
	"fmt"
	"time"
)

// WaitForDocuments polls the service until every handle is active.
// There is no deadline of its own; cancel ctx to give up.
func WaitForDocuments(ctx context.Context, client Client, handles []DocumentHandle, interval time.Duration) error {
	for _, handle := range handles {
		for {
			state, err := client.DocumentState(ctx, handle)
			if err != nil {
				return fmt.Errorf("failed to check document %s: %w", handle.DisplayName, err)
			}

			if state == DocumentActive {
				break
			}
			if state == DocumentFailed {
				return fmt.Errorf("%w: %s", ErrDocumentFailed, handle.DisplayName)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return nil
}
