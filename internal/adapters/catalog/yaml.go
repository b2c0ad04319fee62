// Package catalog loads course content from YAML files on disk.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	domain "github.com/okian/scoreboard/internal/domain/catalog"
	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/pkg/logger"
)

// Course is the on-disk shape of one course file.
type Course struct {
	ID         string             `yaml:"id"`
	Title      string             `yaml:"title"`
	Topics     []Topic            `yaml:"topics"`
	FinalExam  *domain.Assessment `yaml:"final_exam"`
	SkillTests []domain.SkillTest `yaml:"skill_tests"`
}

// Topic groups lessons and an optional module test.
type Topic struct {
	ID         string             `yaml:"id"`
	Lessons    []Lesson           `yaml:"lessons"`
	ModuleTest *domain.Assessment `yaml:"module_test"`
}

// Lesson is one lesson's gradable content.
type Lesson struct {
	ID                string `yaml:"id"`
	domain.Assessment `yaml:",inline"`
}

type topicIndex struct {
	lessons    map[string]domain.Assessment
	moduleTest *domain.Assessment
}

type courseIndex struct {
	topics    map[string]topicIndex
	finalExam *domain.Assessment
}

// Loader serves course content loaded from a directory of YAML files.
// It implements domain.Catalog and domain.SkillTests.
type Loader struct {
	mu         sync.RWMutex
	courses    map[string]courseIndex
	skillTests map[string]domain.SkillTest
	log        logger.Logger
}

// ErrInvalidCourse is returned for course files that do not parse.
var ErrInvalidCourse = errors.New("invalid course file")

var (
	_ domain.Catalog    = (*Loader)(nil)
	_ domain.SkillTests = (*Loader)(nil)
)

// New builds a loader from in-memory courses.
func New(courses ...Course) (*Loader, error) {
	l := &Loader{
		courses:    make(map[string]courseIndex),
		skillTests: make(map[string]domain.SkillTest),
		log:        logger.Nop(),
	}
	for _, c := range courses {
		if err := l.add(c); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Load walks dir and loads every .yaml or .yml file as a course. Files
// that do not parse are skipped with a warning.
func Load(ctx context.Context, dir string, log logger.Logger) (*Loader, error) {
	l, _ := New()
	l.log = log

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}
		return l.loadFile(ctx, path)
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", dir, err)
	}

	log.Info(ctx, "catalog loaded",
		logger.Int("courses", len(l.courses)),
		logger.Int("skill_tests", len(l.skillTests)),
	)
	return l, nil
}

// ReadCourse parses one course file.
func ReadCourse(path string) (Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Course{}, err
	}
	var c Course
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Course{}, fmt.Errorf("%w: %w", ErrInvalidCourse, err)
	}
	return c, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) error {
	c, err := ReadCourse(path)
	if errors.Is(err, ErrInvalidCourse) {
		l.log.Warn(ctx, "skipping invalid course YAML", logger.String("path", path), logger.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	if c.ID == "" {
		return nil
	}
	if err := l.add(c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (l *Loader) add(c Course) error {
	if c.ID == "" {
		return fmt.Errorf("course without id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.courses[c.ID]; dup {
		return fmt.Errorf("duplicate course %q", c.ID)
	}

	ci := courseIndex{topics: make(map[string]topicIndex, len(c.Topics)), finalExam: c.FinalExam}
	for _, t := range c.Topics {
		ti := topicIndex{lessons: make(map[string]domain.Assessment, len(t.Lessons)), moduleTest: t.ModuleTest}
		for _, ls := range t.Lessons {
			ti.lessons[ls.ID] = ls.Assessment
		}
		ci.topics[t.ID] = ti
	}

	for _, st := range c.SkillTests {
		if _, dup := l.skillTests[st.ID]; dup {
			return fmt.Errorf("duplicate skill test %q", st.ID)
		}
		st.CourseID = c.ID
		l.skillTests[st.ID] = st
	}
	l.courses[c.ID] = ci
	return nil
}

func (l *Loader) topic(courseID, topicID string) (topicIndex, courseIndex, error) {
	c, ok := l.courses[courseID]
	if !ok {
		return topicIndex{}, courseIndex{}, fmt.Errorf("course %s: %w", courseID, ledger.ErrNotFound)
	}
	t, ok := c.topics[topicID]
	if !ok {
		return topicIndex{}, c, fmt.Errorf("%w: topic %s/%s: %w", ledger.ErrValidation, courseID, topicID, ledger.ErrNotFound)
	}
	return t, c, nil
}

// Lesson implements domain.Catalog.
func (l *Loader) Lesson(_ context.Context, courseID, topicID, lessonID string) (domain.Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, _, err := l.topic(courseID, topicID)
	if err != nil {
		return domain.Assessment{}, err
	}
	a, ok := t.lessons[lessonID]
	if !ok {
		return domain.Assessment{}, fmt.Errorf("%w: lesson %s/%s/%s: %w", ledger.ErrValidation, courseID, topicID, lessonID, ledger.ErrNotFound)
	}
	return a, nil
}

// ModuleTest implements domain.Catalog.
func (l *Loader) ModuleTest(_ context.Context, courseID, topicID string) (domain.Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, _, err := l.topic(courseID, topicID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if t.moduleTest == nil {
		return domain.Assessment{}, fmt.Errorf("%w: module test %s/%s: %w", ledger.ErrValidation, courseID, topicID, ledger.ErrNotFound)
	}
	return *t.moduleTest, nil
}

// FinalExam implements domain.Catalog.
func (l *Loader) FinalExam(_ context.Context, courseID string) (domain.Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.courses[courseID]
	if !ok {
		return domain.Assessment{}, fmt.Errorf("course %s: %w", courseID, ledger.ErrNotFound)
	}
	if c.finalExam == nil {
		return domain.Assessment{}, fmt.Errorf("%w: final exam %s: %w", ledger.ErrValidation, courseID, ledger.ErrNotFound)
	}
	return *c.finalExam, nil
}

// SkillTest implements domain.SkillTests.
func (l *Loader) SkillTest(_ context.Context, skillTestID string) (domain.SkillTest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.skillTests[skillTestID]
	if !ok {
		return domain.SkillTest{}, fmt.Errorf("%w: skill test %s: %w", ledger.ErrValidation, skillTestID, ledger.ErrNotFound)
	}
	return st, nil
}

// Courses returns the number of loaded courses.
func (l *Loader) Courses() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.courses)
}
