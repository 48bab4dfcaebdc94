package survey

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidSection = errors.New("invalid section tree")

// Tree is the section arena of one survey. Sections are addressed by id and
// point at their parent through a ParentRef.
type Tree struct {
	sections        map[int64]Section
	questionSection map[int64]int64
}

// NewTree indexes sections and checks that every parent reference resolves
// and that no section is its own ancestor.
func NewTree(sections []Section, questionIDs []int64) (*Tree, error) {
	t := &Tree{
		sections:        make(map[int64]Section, len(sections)),
		questionSection: map[int64]int64{},
	}
	known := make(map[int64]bool, len(questionIDs))
	for _, id := range questionIDs {
		known[id] = true
	}
	for _, s := range sections {
		if _, dup := t.sections[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate section %d", ErrInvalidSection, s.ID)
		}
		t.sections[s.ID] = s
		for _, qid := range s.QuestionIDs {
			if !known[qid] {
				return nil, fmt.Errorf("%w: section %d lists unknown question %d", ErrInvalidSection, s.ID, qid)
			}
			if other, ok := t.questionSection[qid]; ok {
				return nil, fmt.Errorf("%w: question %d is in sections %d and %d", ErrInvalidSection, qid, other, s.ID)
			}
			t.questionSection[qid] = s.ID
		}
	}
	for _, s := range sections {
		switch s.Parent.Kind {
		case ParentSection:
			if _, ok := t.sections[s.Parent.ID]; !ok {
				return nil, fmt.Errorf("%w: section %d has unknown parent section %d", ErrInvalidSection, s.ID, s.Parent.ID)
			}
		case ParentQuestion:
			if !known[s.Parent.ID] {
				return nil, fmt.Errorf("%w: section %d has unknown parent question %d", ErrInvalidSection, s.ID, s.Parent.ID)
			}
		}
	}
	for id := range t.sections {
		if t.cyclic(id) {
			return nil, fmt.Errorf("%w: section %d is its own ancestor", ErrInvalidSection, id)
		}
	}
	return t, nil
}

func (t *Tree) cyclic(start int64) bool {
	seen := map[int64]bool{}
	id, ok := start, true
	for ok {
		if seen[id] {
			return true
		}
		seen[id] = true
		id, ok = t.parentSection(id)
	}
	return false
}

// parentSection follows one step up, passing through an owning question to
// the section that contains it.
func (t *Tree) parentSection(id int64) (int64, bool) {
	p := t.sections[id].Parent
	switch p.Kind {
	case ParentSection:
		return p.ID, true
	case ParentQuestion:
		sid, ok := t.questionSection[p.ID]
		return sid, ok
	}
	return 0, false
}

// Parents returns the ancestry of a question, nearest first: its section,
// that section's parent section or owning question, and so on to the root.
func (t *Tree) Parents(questionID int64) []ParentRef {
	sid, ok := t.questionSection[questionID]
	if !ok {
		return nil
	}
	var out []ParentRef
	for {
		out = append(out, SectionParent(sid))
		p := t.sections[sid].Parent
		switch p.Kind {
		case ParentSection:
			sid = p.ID
			continue
		case ParentQuestion:
			out = append(out, p)
			next, ok := t.questionSection[p.ID]
			if !ok {
				return out
			}
			sid = next
			continue
		}
		return out
	}
}

// Sections returns the sections ordered by line.
func (t *Tree) Sections() []Section {
	out := make([]Section, 0, len(t.sections))
	for _, s := range t.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].ID < out[j].ID
	})
	return out
}
