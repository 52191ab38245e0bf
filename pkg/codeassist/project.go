package codeassist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
)

// Onboarding is a long-running server operation; the call is idempotent
// and re-issued until the operation reports done.
const (
	onboardPollInterval = 5 * time.Second
	onboardMaxPolls     = 10
)

// clientMetadata identifies this client to the provisioning endpoints.
func clientMetadata() map[string]string {
	return map[string]string{
		"ideType":    "IDE_UNSPECIFIED",
		"platform":   "PLATFORM_UNSPECIFIED",
		"pluginType": "GEMINI",
	}
}

// ResolveProject determines the Code Assist project bound to the
// current credential, provisioning one via onboarding when the account
// has none yet. The call is retried across the same prioritized host
// list used for generation.
func (c *Client) ResolveProject(ctx context.Context) (string, error) {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{"metadata": clientMetadata()})
	if err != nil {
		return "", err
	}
	body, err := c.dispatcher.Send(ctx, token, loadCodeAssistPath, payload)
	if err != nil {
		return "", fmt.Errorf("loading code assist profile: %w", err)
	}

	if project := projectID(gjson.GetBytes(body, "cloudaicompanionProject")); project != "" {
		return project, nil
	}

	// New account without a project: provision one.
	tier := selectTier(body)
	slog.Info("no project assigned, onboarding", "tier", tier)
	return c.onboard(ctx, tier)
}

// projectID extracts a project id from the cloudaicompanionProject
// field, which is either a plain string or an object with an id.
func projectID(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return v.Get("id").String()
}

// selectTier picks the onboarding tier: the default-flagged one, else
// the first allowed, else the free tier.
func selectTier(body []byte) string {
	tiers := gjson.GetBytes(body, "allowedTiers").Array()
	for _, t := range tiers {
		if t.Get("isDefault").Bool() {
			return t.Get("id").String()
		}
	}
	if len(tiers) > 0 {
		return tiers[0].Get("id").String()
	}
	return "free-tier"
}

// onboard provisions a project and polls the long-running operation
// until it completes.
func (c *Client) onboard(ctx context.Context, tier string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"tierId":   tier,
		"metadata": clientMetadata(),
	})
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < onboardMaxPolls; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("onboarding cancelled: %w", ctx.Err())
			case <-time.After(onboardPollInterval):
			}
		}

		// Polling can outlive the access token.
		token, err := c.tokens.EnsureValid(ctx)
		if err != nil {
			return "", err
		}

		body, err := c.dispatcher.Send(ctx, token, onboardUserPath, payload)
		if err != nil {
			return "", fmt.Errorf("onboarding user: %w", err)
		}

		if !gjson.GetBytes(body, "done").Bool() {
			slog.Debug("onboarding in progress", "attempt", attempt+1)
			continue
		}
		if project := projectID(gjson.GetBytes(body, "response.cloudaicompanionProject")); project != "" {
			return project, nil
		}
		return "", fmt.Errorf("onboarding completed without a project id")
	}
	return "", fmt.Errorf("onboarding did not complete after %d attempts", onboardMaxPolls)
}
