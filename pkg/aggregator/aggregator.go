// Package aggregator reduces a stream of repository-activity events into
// project-health indicators in a single pass.
//
// An Aggregator is not safe for concurrent use. Create one per repository.
package aggregator

import (
	"cmp"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/healthfang/pkg/events"
)

const (
	secondsPerDay = 24 * 60 * 60

	// RecentDays is the lookback from the window end that counts as recent.
	RecentDays = 90

	branchRefPrefix = "refs/heads/"
)

// Aggregator accumulates commit and file lifecycle events for one repository.
type Aggregator struct {
	settings Settings
	patterns patterns
	midpoint time.Time

	totalCommits  int
	recentCommits int
	contributors  *tally
	organizations *tally

	recentContributors  set
	recentOrganizations set
	growthFirst         set
	growthSecond        set
	retentionFirst      set
	retentionSecond     set
	branches            set

	fileTypes    FileTypes
	commitSize   CommitSize
	messageSizes []int

	first *CommitRef
	last  *CommitRef

	// Net presence of governance files. Lifecycle events can arrive out of
	// causal order, so a counter may dip below zero before recovering.
	licensePresence  int
	adoptersPresence int
}

// New creates an Aggregator. The window defaults to the 365 days ending now.
func New(opts ...Option) (*Aggregator, error) {
	return newAt(time.Now(), opts...)
}

func newAt(now time.Time, opts ...Option) (*Aggregator, error) {
	settings := DefaultSettings()

	for _, opt := range opts {
		opt(&settings)
	}

	settings.resolveWindow(now)

	err := settings.validate()
	if err != nil {
		return nil, err
	}

	compiled, err := compilePatterns(settings)
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		settings:            settings,
		patterns:            compiled,
		midpoint:            midpointOf(settings.From, settings.To),
		contributors:        newTally(),
		organizations:       newTally(),
		recentContributors:  make(set),
		recentOrganizations: make(set),
		growthFirst:         make(set),
		growthSecond:        make(set),
		retentionFirst:      make(set),
		retentionSecond:     make(set),
		branches:            make(set),
	}, nil
}

// Settings returns the effective configuration.
func (a *Aggregator) Settings() Settings {
	return a.settings
}

// Window returns the analysis window bounds.
func (a *Aggregator) Window() (from, to time.Time) {
	return a.settings.From, a.settings.To
}

// Process consumes every event in seq. Unknown event types are ignored and
// malformed fields only skip the updates that depend on them.
func (a *Aggregator) Process(seq iter.Seq[events.Event]) {
	for ev := range seq {
		switch ev.Type {
		case events.TypeCommit:
			a.processCommit(events.DecodeCommit(ev.Data))
		case events.TypeFileAdded, events.TypeFileCopied:
			data := events.DecodeFile(ev.Data)
			a.adjustPresence(cmp.Or(data.NewFilename, data.Filename), 1)
		case events.TypeFileDeleted:
			a.adjustPresence(events.DecodeFile(ev.Data).Filename, -1)
		case events.TypeFileReplaced:
			data := events.DecodeFile(ev.Data)
			a.adjustPresence(data.Filename, -1)
			a.adjustPresence(data.NewFilename, 1)
		}
	}
}

func (a *Aggregator) processCommit(data events.CommitData) {
	a.totalCommits++

	date, dated := events.ParseDate(data.CommitDate)
	recent := dated && a.isRecent(date)

	if recent {
		a.recentCommits++
	}

	a.updateBranches(data.Refs)
	a.updateContributor(data.Author, date, dated, recent)
	a.updateOrganization(data.Author, recent)
	a.updateFiles(data.Files)
	a.messageSizes = append(a.messageSizes, utf8.RuneCountInString(data.Message))

	if dated && data.Commit != "" {
		a.updateFirstAndLast(CommitRef{ID: data.Commit, Date: date})
	}
}

// isRecent reports whether date falls within RecentDays whole days of the
// window end. Dates after the window end are recent.
func (a *Aggregator) isRecent(date time.Time) bool {
	return daysBetween(date, a.settings.To) <= RecentDays
}

func (a *Aggregator) updateBranches(refs []string) {
	for _, ref := range refs {
		_, name, found := strings.Cut(ref, branchRefPrefix)
		if !found {
			continue
		}

		a.branches.add(name)
	}
}

func (a *Aggregator) updateContributor(author string, date time.Time, dated, recent bool) {
	if author == "" {
		return
	}

	a.contributors.add(author)

	if !dated {
		return
	}

	if date.Before(a.midpoint) {
		a.growthFirst.add(author)
	} else {
		a.growthSecond.add(author)
	}

	if recent {
		a.recentContributors.add(author)
		a.retentionSecond.add(author)
	} else {
		a.retentionFirst.add(author)
	}
}

func (a *Aggregator) updateOrganization(author string, recent bool) {
	org := organizationOf(author)
	if org == "" {
		return
	}

	a.organizations.add(org)

	if recent {
		a.recentOrganizations.add(org)
	}
}

// organizationOf returns the email domain of a "Name <user@domain>" identity.
func organizationOf(author string) string {
	_, rest, found := strings.Cut(author, "@")
	if !found {
		return ""
	}

	domain, _, _ := strings.Cut(rest, "@")

	return strings.TrimSuffix(domain, ">")
}

func (a *Aggregator) updateFiles(files []events.FileChange) {
	for _, file := range files {
		if file.File == "" {
			continue
		}

		switch {
		case a.patterns.code.MatchString(file.File):
			a.fileTypes.Code++
		case a.patterns.binary.MatchString(file.File):
			a.fileTypes.Binary++
		default:
			a.fileTypes.Other++
		}

		if file.Added.Valid {
			a.commitSize.AddedLines += file.Added.Value
		}

		if file.Removed.Valid {
			a.commitSize.RemovedLines += file.Removed.Value
		}
	}
}

func (a *Aggregator) updateFirstAndLast(ref CommitRef) {
	if a.first == nil || ref.Date.Before(a.first.Date) {
		first := ref
		a.first = &first
	}

	if a.last == nil || ref.Date.After(a.last.Date) {
		last := ref
		a.last = &last
	}
}

// adjustPresence moves the net presence counter of the governance file kind
// that filename fully matches. License wins over adopters.
func (a *Aggregator) adjustPresence(filename string, delta int) {
	if filename == "" {
		return
	}

	switch {
	case a.patterns.license.MatchString(filename):
		a.licensePresence += delta
	case a.patterns.adopters.MatchString(filename):
		a.adoptersPresence += delta
	}
}

// daysBetween returns the whole days from from to to, rounding towards
// negative infinity. Spans longer than a time.Duration are exact.
func daysBetween(from, to time.Time) int {
	seconds := to.Unix() - from.Unix()
	if to.Nanosecond() < from.Nanosecond() {
		seconds--
	}

	days := seconds / secondsPerDay
	if seconds%secondsPerDay < 0 {
		days--
	}

	return int(days)
}

// midpointOf returns the instant halfway between from and to.
func midpointOf(from, to time.Time) time.Time {
	half := (to.Unix() - from.Unix()) / 2

	return time.Unix(from.Unix()+half, int64(from.Nanosecond())).In(from.Location())
}
