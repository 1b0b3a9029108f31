package toolchain

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Revision returns the commit hash checked out in the CATO installation, or
// an empty string when the installation is not a git working tree.
func Revision(root string) (string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", fmt.Errorf("open %s: %w", root, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD of %s: %w", root, err)
	}
	return head.Hash().String(), nil
}
