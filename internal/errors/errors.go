package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeInvalidProbability  ErrorType = "INVALID_PROBABILITY_DISTRIBUTION"
	ErrorTypeInvalidConfig       ErrorType = "INVALID_CONFIG"
	ErrorTypeCommitNotFound      ErrorType = "COMMIT_NOT_FOUND"
	ErrorTypeBranchNotFound      ErrorType = "BRANCH_NOT_FOUND"
	ErrorTypeNoCollapse          ErrorType = "NO_COLLAPSE"
	ErrorTypeAlreadyCollapsed    ErrorType = "ALREADY_COLLAPSED"
	ErrorTypeManualReview        ErrorType = "MANUAL_REVIEW_REQUIRED"
	ErrorTypeSemanticMergeFailed ErrorType = "SEMANTIC_MERGE_FAILED"
)

// Category groups error types by who is expected to act on them
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryLookup     Category = "lookup"
	CategoryState      Category = "state"
	CategoryPolicy     Category = "policy"
	CategoryExternal   Category = "external"
)

var categories = map[ErrorType]Category{
	ErrorTypeInvalidProbability:  CategoryValidation,
	ErrorTypeInvalidConfig:       CategoryValidation,
	ErrorTypeCommitNotFound:      CategoryLookup,
	ErrorTypeBranchNotFound:      CategoryLookup,
	ErrorTypeNoCollapse:          CategoryLookup,
	ErrorTypeAlreadyCollapsed:    CategoryState,
	ErrorTypeManualReview:        CategoryPolicy,
	ErrorTypeSemanticMergeFailed: CategoryExternal,
}

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Category() Category {
	return categories[e.Type]
}

// IsType reports whether any error in err's chain is an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}

// TypeOf returns the type of the first *Error in err's chain, or ""
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// InvalidProbabilityDistribution carries the offending total in Details
func InvalidProbabilityDistribution(total float64) *Error {
	return &Error{
		Type:    ErrorTypeInvalidProbability,
		Message: fmt.Sprintf("invalid probability distribution: %g, must sum to 1.0", total),
		Details: total,
	}
}

func InvalidConfig(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeInvalidConfig,
		Message: message,
		Err:     err,
	}
}

func CommitNotFound(id string) *Error {
	return &Error{
		Type:    ErrorTypeCommitNotFound,
		Message: fmt.Sprintf("commit not found: %s", id),
		Details: id,
	}
}

func BranchNotFound(branch string) *Error {
	return &Error{
		Type:    ErrorTypeBranchNotFound,
		Message: fmt.Sprintf("branch not found: %s", branch),
		Details: branch,
	}
}

// NoCollapse means the branch had candidates but none won its draw
func NoCollapse(branch string, candidates int) *Error {
	return &Error{
		Type:    ErrorTypeNoCollapse,
		Message: fmt.Sprintf("no commit collapsed onto branch %s (%d candidates)", branch, candidates),
		Details: branch,
	}
}

func AlreadyCollapsed(id, branch string) *Error {
	return &Error{
		Type:    ErrorTypeAlreadyCollapsed,
		Message: fmt.Sprintf("commit %s already collapsed onto %s", id, branch),
		Details: branch,
	}
}

func ManualReviewRequired(path string) *Error {
	return &Error{
		Type:    ErrorTypeManualReview,
		Message: fmt.Sprintf("manual review required for file: %s", path),
		Details: path,
	}
}

func SemanticMergeFailed(path string, err error) *Error {
	return &Error{
		Type:    ErrorTypeSemanticMergeFailed,
		Message: fmt.Sprintf("semantic merge failed for %s", path),
		Details: path,
		Err:     err,
	}
}
