package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

const maxWeight = 1000

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateAssessmentCreate checks tags and that every answer key can be graded
func (bv *BusinessValidator) ValidateAssessmentCreate(req *AssessmentCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	for i := range req.Questions {
		errors = append(errors, bv.validateAnswerKey(fmt.Sprintf("questions[%d]", i), &req.Questions[i])...)
	}
	return errors
}

// ValidateSettingsUpdate rejects empty updates on top of tag validation
func (bv *BusinessValidator) ValidateSettingsUpdate(req *AssessmentSettingsRequest) ValidationErrors {
	errors := bv.Validate(req)
	if len(errors) > 0 {
		return errors
	}

	if req.Title == nil && req.Description == nil && req.Type == nil && req.PassingScore == nil &&
		req.MaxAttempts == nil && req.ShowFeedback == nil && req.ShuffleQuestions == nil {
		errors = append(errors, ValidationError{
			Field:   "settings",
			Message: "at least one setting must be provided",
			Rule:    "business_logic",
		})
	}
	return errors
}

// ValidateRegradeScore checks a manual score against the answer's maximum
func (bv *BusinessValidator) ValidateRegradeScore(score, maxScore float64) ValidationErrors {
	if score < 0 || score > maxScore {
		return ValidationErrors{{
			Field:   "score",
			Message: fmt.Sprintf("must be between 0 and %g", maxScore),
			Value:   score,
			Rule:    "business_logic",
		}}
	}
	return nil
}

// validateAnswerKey checks the answer key shape expected by the grader for the question type
func (bv *BusinessValidator) validateAnswerKey(field string, q *AssessmentQuestionRequest) ValidationErrors {
	var errors ValidationErrors
	fail := func(name, message string) {
		errors = append(errors, ValidationError{
			Field:   field + "." + name,
			Message: message,
			Rule:    "answer_key",
		})
	}

	var key interface{}
	if len(q.CorrectAnswer) > 0 {
		if err := json.Unmarshal(q.CorrectAnswer, &key); err != nil {
			fail("correct_answer", "must be valid JSON")
			return errors
		}
	}

	switch q.Type {
	case models.MultipleChoice:
		if len(q.Options) < 2 {
			fail("options", "must contain at least 2 options")
		}
		correct := 0
		for _, opt := range q.Options {
			if strings.TrimSpace(opt.Text) == "" {
				fail("options", "option text cannot be blank")
				break
			}
			if opt.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			fail("options", "at least one option must be marked correct")
		}
	case models.TrueFalse:
		if _, ok := key.(bool); !ok {
			fail("correct_answer", "must be true or false")
		}
	case models.ShortAnswer:
		switch v := key.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				fail("correct_answer", "cannot be blank")
			}
		case []interface{}:
			if len(v) == 0 || !allStrings(v) {
				fail("correct_answer", "must be a non-empty list of strings")
			}
		default:
			fail("correct_answer", "must be a string or a list of strings")
		}
	case models.Matching:
		pairs, ok := key.(map[string]interface{})
		if !ok || len(pairs) == 0 {
			fail("correct_answer", "must be a non-empty object mapping items to matches")
		}
	case models.FillInBlank:
		blanks, ok := key.([]interface{})
		if !ok || len(blanks) == 0 {
			fail("correct_answer", "must be a non-empty list of blanks")
			break
		}
		for i, blank := range blanks {
			switch v := blank.(type) {
			case string:
			case []interface{}:
				if len(v) == 0 || !allStrings(v) {
					fail(fmt.Sprintf("correct_answer[%d]", i), "must list at least one accepted string")
				}
			default:
				fail(fmt.Sprintf("correct_answer[%d]", i), "must be a string or a list of strings")
			}
		}
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Passing score validation (0-100)
	bv.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	// Max attempts validation (1-100)
	bv.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 1 && attempts <= 100
	})

	bv.validate.RegisterValidation("weight_range", func(fl validator.FieldLevel) bool {
		weight := fl.Field().Float()
		return weight > 0 && weight <= maxWeight
	})

	bv.validate.RegisterValidation("not_blank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	// question type validation
	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("assessment_type", func(fl validator.FieldLevel) bool {
		switch models.AssessmentType(fl.Field().String()) {
		case models.AssessmentQuiz, models.AssessmentTest, models.AssessmentAssignment, models.AssessmentSurvey:
			return true
		}
		return false
	})

	bv.validate.RegisterValidation("feedback_mode", func(fl validator.FieldLevel) bool {
		switch models.FeedbackMode(fl.Field().String()) {
		case models.FeedbackAlways, models.FeedbackOnCompletion, models.FeedbackNever:
			return true
		}
		return false
	})

	// difficulty level validation
	bv.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		switch models.DifficultyLevel(fl.Field().String()) {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
			return true
		}
		return false
	})
}

func allStrings(values []interface{}) bool {
	for _, v := range values {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}
