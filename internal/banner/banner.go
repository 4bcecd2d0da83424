// Package banner renders the comment block prepended to every built file
package banner

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/dualpack/dualpack/pkg/types"
)

// Unknown is used for release fields outside a git repository
const Unknown = "unknown"

// FileBase is substituted by the bundler with each file's base name
const FileBase = "[filebase]"

const buildTimeLayout = "Mon, Jan 2, 2006 3:04 PM MST"

// Info holds the banner fields
type Info struct {
	Project   string
	Author    string
	Copyright string
	BuildTime time.Time
	Commit    string
	Branch    string
}

// Release returns the HEAD commit and branch of the repository that
// contains dir. Outside a repository both are Unknown.
func Release(dir string) (commit, branch string) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Unknown, Unknown
	}

	head, err := repo.Head()
	if err != nil {
		return Unknown, Unknown
	}

	branch = "HEAD"
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}
	return head.Hash().String(), branch
}

// IsRepository reports whether dir is inside a git work tree
func IsRepository(dir string) bool {
	_, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// NewInfo collects banner fields from settings and the repository at projectRoot
func NewInfo(settings *types.Settings, projectRoot string, now time.Time) Info {
	commit, branch := Release(projectRoot)
	return Info{
		Project:   settings.Name,
		Author:    settings.Author,
		Copyright: settings.Copyright,
		BuildTime: now,
		Commit:    commit,
		Branch:    branch,
	}
}

// Render returns the banner text, ending with a newline
func Render(info Info) string {
	lines := []string{
		"/*!",
		" * @project        " + info.Project,
		" * @name           " + FileBase,
		" * @author         " + info.Author,
		" * @build          " + info.BuildTime.Format(buildTimeLayout),
		fmt.Sprintf(" * @release        %s [%s]", info.Commit, info.Branch),
		fmt.Sprintf(" * @copyright      Copyright (c) %d %s", info.BuildTime.Year(), info.Copyright),
		" *",
		" */",
		"",
	}
	return strings.Join(lines, "\n")
}
