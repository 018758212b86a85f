package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Content limits, counted in characters.
const (
	MaxTitleLength       = 150
	MaxBodyLength        = 5000
	MaxAnswerLength      = 5000
	MaxReplyLength       = 2000
	MaxSearchQueryLength = MaxTitleLength
)

// Messages returned by the field validators.
const (
	MsgTitleEmpty    = "Title cannot be empty"
	MsgBodyEmpty     = "Question body cannot be empty"
	MsgAnswerEmpty   = "Answer cannot be empty"
	MsgReplyEmpty    = "Reply cannot be empty"
	MsgLimitExceeded = "You have exceeded the maximum character limit"
)

// Question is a single question posted to the forum.
type Question struct {
	ID               string    `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	Body             string    `json:"body" db:"body"`
	Author           string    `json:"author" db:"author"`
	CreatedAt        time.Time `json:"created_at" db:"created"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated"`
	Resolved         bool      `json:"resolved" db:"resolved"`
	ResolvedAnswerID string    `json:"resolved_answer_id,omitempty" db:"resolved_answer_id"`
	TotalAnswers     int       `json:"total_answers" db:"total_answers"`
	NewAnswers       int       `json:"new_answers" db:"new_answers"`
}

// Answer belongs to exactly one question.
type Answer struct {
	ID               string    `json:"id" db:"id"`
	QuestionID       string    `json:"question_id" db:"question_id"`
	Content          string    `json:"content" db:"content"`
	Author           string    `json:"author" db:"author"`
	CreatedAt        time.Time `json:"created_at" db:"created"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated"`
	MarkedAsResolved bool      `json:"marked_as_resolved" db:"marked_as_resolved"`
}

// Reply is a comment attached to an answer.
type Reply struct {
	ID        string    `json:"id" db:"id"`
	AnswerID  string    `json:"answer_id" db:"answer_id"`
	Content   string    `json:"content" db:"content"`
	Author    string    `json:"author" db:"author"`
	CreatedAt time.Time `json:"created_at" db:"created"`
	UpdatedAt time.Time `json:"updated_at" db:"updated"`
}

// ForumChange is the set of rows touched by one logical forum operation.
// Deletes are applied before upserts.
type ForumChange struct {
	Questions        []Question `json:"questions,omitempty"`
	Answers          []Answer   `json:"answers,omitempty"`
	Replies          []Reply    `json:"replies,omitempty"`
	DeletedQuestions []string   `json:"deleted_questions,omitempty"`
	DeletedAnswers   []string   `json:"deleted_answers,omitempty"`
	DeletedReplies   []string   `json:"deleted_replies,omitempty"`
}

// Empty reports whether the change touches nothing.
func (c ForumChange) Empty() bool {
	return len(c.Questions) == 0 && len(c.Answers) == 0 && len(c.Replies) == 0 &&
		len(c.DeletedQuestions) == 0 && len(c.DeletedAnswers) == 0 && len(c.DeletedReplies) == 0
}

// ForumSnapshot holds every persisted forum row, each slice ordered by creation.
type ForumSnapshot struct {
	Questions []Question
	Answers   []Answer
	Replies   []Reply
}

// ValidateTitle returns an empty string when the title is acceptable.
func ValidateTitle(title string) string {
	return validateText(title, MaxTitleLength, MsgTitleEmpty)
}

// ValidateBody returns an empty string when the question body is acceptable.
func ValidateBody(body string) string {
	return validateText(body, MaxBodyLength, MsgBodyEmpty)
}

// ValidateAnswerContent returns an empty string when the answer text is acceptable.
func ValidateAnswerContent(content string) string {
	return validateText(content, MaxAnswerLength, MsgAnswerEmpty)
}

// ValidateReplyContent returns an empty string when the reply text is acceptable.
func ValidateReplyContent(content string) string {
	return validateText(content, MaxReplyLength, MsgReplyEmpty)
}

func validateText(s string, max int, emptyMsg string) string {
	if strings.TrimSpace(s) == "" {
		return emptyMsg
	}
	if utf8.RuneCountInString(s) > max {
		return MsgLimitExceeded
	}
	return ""
}
