// Package menu renders course content as two-level Telegram inline keyboards.
// Builders are pure: no external calls, no state.
package menu

import (
	"fmt"
	"strconv"
	"strings"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/openlearnhq/coursegate/internal/store"
)

// Callback selectors carried in inline keyboard buttons.
const (
	SelectorMenu         = "menu"
	selectorCoursePrefix = "course:"
	selectorLessonPrefix = "lesson:"
)

// CourseSelector builds the opaque selector for a course button.
func CourseSelector(id int64) string {
	return selectorCoursePrefix + strconv.FormatInt(id, 10)
}

// LessonSelector builds the opaque selector for a lesson button.
func LessonSelector(id int64) string {
	return selectorLessonPrefix + strconv.FormatInt(id, 10)
}

// ParseCourseSelector extracts the course id from a selector, if it is one.
func ParseCourseSelector(data string) (int64, bool) {
	return parseSelector(data, selectorCoursePrefix)
}

// ParseLessonSelector extracts the lesson id from a selector, if it is one.
func ParseLessonSelector(data string) (int64, bool) {
	return parseSelector(data, selectorLessonPrefix)
}

func parseSelector(data, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CourseList renders the top-level course selection menu.
func CourseList(courses []store.Course) (string, *tgmodels.InlineKeyboardMarkup) {
	if len(courses) == 0 {
		return "No courses are available yet. Please check back later.", nil
	}

	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(courses))
	for _, course := range courses {
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         course.Title,
			CallbackData: CourseSelector(course.ID),
		}})
	}

	return "Your courses — pick one to see its lessons:", &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CourseView renders a course summary plus its ordered lesson list, with a
// back-reference to the top-level menu. summaryLimit is the character budget
// for the course body; the full body stays available in lesson views.
func CourseView(course store.Course, lessons []store.Subcontent, summaryLimit int) (string, *tgmodels.InlineKeyboardMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", course.Title)
	if course.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", course.Description)
	}
	if course.Body != "" {
		fmt.Fprintf(&b, "%s\n\n", Truncate(course.Body, summaryLimit))
	}
	if len(lessons) == 0 {
		b.WriteString("This course has no lessons yet.")
	} else {
		b.WriteString("Lessons:")
	}

	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(lessons)+1)
	for i, lesson := range lessons {
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%d. %s", i+1, lesson.Title),
			CallbackData: LessonSelector(lesson.ID),
		}})
	}
	rows = append(rows, []tgmodels.InlineKeyboardButton{{
		Text:         "« Back to courses",
		CallbackData: SelectorMenu,
	}})

	return b.String(), &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// LessonView renders a lesson's full body and optional external resource,
// with a back-reference to its parent course.
func LessonView(lesson store.Subcontent) (string, *tgmodels.InlineKeyboardMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s", lesson.Title, lesson.Body)

	rows := make([][]tgmodels.InlineKeyboardButton, 0, 2)
	if lesson.ExternalURL != "" {
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text: "Open resource",
			URL:  lesson.ExternalURL,
		}})
	}
	rows = append(rows, []tgmodels.InlineKeyboardButton{{
		Text:         "« Back to course",
		CallbackData: CourseSelector(lesson.CourseID),
	}})

	return b.String(), &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Truncate shortens s to at most limit characters, appending an ellipsis
// when anything was cut. Rune-safe.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
