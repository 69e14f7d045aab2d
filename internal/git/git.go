package git

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// State captures the VCS context of a workspace at checkpoint time, so a
// rewind target can be correlated with repository state later.
type State struct {
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// Describe returns the current branch, HEAD commit and dirty flag for the
// repository containing dir. Callers treat an error as "no VCS context",
// not as a failure of the surrounding operation.
func Describe(dir string) (*State, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	state := &State{
		Commit: head.Hash().String(),
	}
	if head.Name().IsBranch() {
		state.Branch = head.Name().Short()
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return state, nil
	}
	status, err := worktree.Status()
	if err != nil {
		return state, nil
	}
	state.Dirty = !status.IsClean()

	return state, nil
}
