package store

import (
	"errors"
	"os"
)

// WorkspaceLocalParams holds the per-clone settings that apply to the
// workspace as a whole rather than to any one resource: the hostname used
// to scope tags, and an optional override for the external sync tool's
// config path.
type WorkspaceLocalParams struct {
	Hostname       string `json:"hostname"`
	SyncToolConfig string `json:"sync_tool_config,omitempty"`
}

// WorkspaceLocalParams returns the workspace-level local parameters,
// creating a zero-value document if one has never been written.
func (s *Store) WorkspaceLocalParams() (WorkspaceLocalParams, error) {
	var params WorkspaceLocalParams

	err := readDocument(s.metaDir, docLocalParams, &params)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return WorkspaceLocalParams{}, nil
		}

		return WorkspaceLocalParams{}, err
	}

	return params, nil
}

// SetWorkspaceLocalParams writes the workspace-level local parameters.
func (s *Store) SetWorkspaceLocalParams(params WorkspaceLocalParams) error {
	return writeDocument(s.metaDir, docLocalParams, params)
}
