package pica

import (
	"context"
	"fmt"
	"net/url"

	pkgerrors "github.com/picahq/pica-go/pkg/errors"
)

// GetAvailableActions lists the actions a platform supports, trimmed to
// summary rows. Remote and user failures come back as Success=false
// envelopes, never as Go errors; an agent reacts to the envelope.
//
// With read or write permissions the listing drops actions the client would
// refuse to execute, judged by the action's method or, when absent, its
// leading title verb.
func (c *Client) GetAvailableActions(ctx context.Context, platform string) ActionsResponse {
	if platform == "" {
		return ActionsResponse{
			Envelope: failure("Failed to get available actions", &pkgerrors.ValidationError{
				Field:      "platform",
				Message:    "platform is required",
				Suggestion: "Pass the platform name exactly as listed in the active connections",
			}),
		}
	}

	c.logger.Info("fetching available actions", "platform", platform)

	actions, err := c.getAllAvailableActions(ctx, platform)
	if err != nil {
		return ActionsResponse{
			Envelope: failure("Failed to get available actions", err),
		}
	}

	summaries := make([]ActionSummary, 0, len(actions))
	for _, action := range actions {
		if !c.permissions.allowsAction(action) {
			continue
		}
		summaries = append(summaries, ActionSummary{
			ID:    action.ID,
			Title: action.Title,
			Tags:  action.Tags,
		})
	}

	c.logger.Info("found available actions", "platform", platform, "count", len(summaries))

	return ActionsResponse{
		Envelope: success(fmt.Sprintf("Found %d available actions for %s", len(summaries), platform)),
		Platform: platform,
		Actions:  summaries,
	}
}

// GetActionKnowledge fetches one action's full record, including its
// knowledge text. Same envelope contract as GetAvailableActions.
func (c *Client) GetActionKnowledge(ctx context.Context, platform, actionID string) ActionKnowledgeResponse {
	if actionID == "" {
		return ActionKnowledgeResponse{
			Envelope: failure("Failed to get action knowledge", &pkgerrors.ValidationError{
				Field:      "action_id",
				Message:    "action id is required",
				Suggestion: "Look the id up with pica.get_available_actions first",
			}),
			Platform: platform,
		}
	}

	action, err := c.getSingleAction(ctx, actionID)
	if err != nil {
		c.logger.Error("failed to get action knowledge", "platform", platform, "action_id", actionID, "error", err)
		return ActionKnowledgeResponse{
			Envelope: failure("Failed to get action knowledge", err),
			Platform: platform,
		}
	}

	return ActionKnowledgeResponse{
		Envelope: success("Found knowledge for action: " + action.Title),
		Platform: platform,
		Action:   &action,
	}
}

// getAllAvailableActions walks the knowledge endpoint for every supported
// action on a platform. The pagination cause is logged here and withheld
// from the returned error; the envelope message stays stable for agents.
func (c *Client) getAllAvailableActions(ctx context.Context, platform string) ([]AvailableAction, error) {
	params := url.Values{}
	params.Set("supported", "true")
	params.Set("connectionPlatform", platform)

	actions, err := fetchAllPages[AvailableAction](ctx, c.hc, c.baseURL+knowledgePath, params, c.apiHeaders(), 0)
	if err != nil {
		c.logger.Error("failed to fetch available actions", "platform", platform, "error", err)
		return nil, pkgerrors.New("failed to fetch available actions")
	}
	return actions, nil
}

// getSingleAction fetches one action by id. Zero rows is a NotFoundError,
// distinct from transport failures; the execute engine relies on the
// distinction when reporting.
func (c *Client) getSingleAction(ctx context.Context, actionID string) (AvailableAction, error) {
	params := url.Values{}
	params.Set("_id", actionID)
	params.Set("limit", "1")

	page, err := fetchPage[AvailableAction](ctx, c.hc, c.baseURL+knowledgePath, params, c.apiHeaders())
	if err != nil {
		return AvailableAction{}, err
	}
	if len(page.Rows) == 0 {
		c.logger.Warn("action not found", "action_id", actionID)
		return AvailableAction{}, &pkgerrors.NotFoundError{Resource: "action", ID: actionID}
	}
	return page.Rows[0], nil
}
