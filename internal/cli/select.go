package cli

import (
	"encoding/json"
	"fmt"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/spf13/cobra"
)

type selectionOutput struct {
	Group      string                 `json:"group"`
	Assignment domain.TopicAssignment `json:"assignment"`
	TopicQuota int                    `json:"topicQuota"`
	Questions  []selectedQuestion     `json:"questions"`
}

type selectedQuestion struct {
	ID       string `json:"id"`
	Topic    string `json:"topic"`
	SourceID string `json:"sourceId,omitempty"`
}

// NewSelectCmd prints the question set a group would receive.
func NewSelectCmd(configPath *string) *cobra.Command {
	var groupID string
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Dry-run question selection for a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			deps, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			service := app.NewQuizService(deps.sessions, deps.content, nil, app.Options{
				TopicQuota:   cfg.Quiz.TopicQuota,
				DefaultLimit: cfg.Quiz.DefaultLimit,
			})
			preview, err := service.Preview(cmd.Context(), groupID)
			if err != nil {
				return err
			}

			out := selectionOutput{
				Group:      preview.Group.Name,
				Assignment: preview.Assignment,
				TopicQuota: preview.TopicQuota,
			}
			for _, q := range preview.Questions {
				out.Questions = append(out.Questions, selectedQuestion{ID: q.ID, Topic: q.Topic, SourceID: q.SourceID})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write selection: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "group id")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}
