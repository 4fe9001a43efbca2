package validation

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ValidationTestSuite struct {
	suite.Suite
	validator *validator.Validate
}

func (s *ValidationTestSuite) SetupTest() {
	s.validator = validator.New()
}

func TestValidationTestSuite(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}

func (s *ValidationTestSuite) TestValidateLangCode() {
	err := Register(s.validator, "langcode", ValidateLangCode)
	s.Require().NoError(err)

	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "two letters", code: "es"},
		{name: "three letters", code: "fil"},
		{name: "with region", code: "pt-BR"},
		{name: "with script", code: "zh-Hant"},
		{name: "invalid - uppercase language", code: "ES", wantErr: true},
		{name: "invalid - single letter", code: "e", wantErr: true},
		{name: "invalid - language name", code: "spanish", wantErr: true},
		{name: "invalid - underscore", code: "pt_BR", wantErr: true},
		{name: "invalid - empty", code: "", wantErr: true},
		{name: "invalid - trailing dash", code: "es-", wantErr: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			type TestStruct struct {
				Lang string `validate:"langcode"`
			}

			err := s.validator.Struct(TestStruct{Lang: tt.code})
			if tt.wantErr {
				s.Require().Error(err, "Expected validation error for %q", tt.code)
			} else {
				s.Require().NoError(err, "Expected no validation error for %q", tt.code)
			}
		})
	}
}

func (s *ValidationTestSuite) TestValidateLangCodeRegex() {
	s.True(langCodeRegex.MatchString("fr"))
	s.True(langCodeRegex.MatchString("en-us"))
	s.False(langCodeRegex.MatchString("english"))
	s.False(langCodeRegex.MatchString(""))
}

func (s *ValidationTestSuite) TestRegisterAndAlias() {
	s.Require().NoError(Register(s.validator, "onlytest", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "test"
	}))
	RegisterAlias(s.validator, "name5", "required,min=5")

	type Body struct {
		Custom string `validate:"omitempty,onlytest"`
		Name   string `validate:"omitempty,name5"`
	}

	s.NoError(s.validator.Struct(Body{Custom: "test", Name: "hello"}))
	s.Error(s.validator.Struct(Body{Custom: "other"}))
	s.Error(s.validator.Struct(Body{Name: "hi"}))
}

func (s *ValidationTestSuite) TestGinBindingHasCustomTags() {
	type Body struct {
		Lang string `binding:"omitempty,langcode"`
		URL  string `binding:"omitempty,wsurl"`
	}

	s.NoError(binding.Validator.ValidateStruct(Body{Lang: "fr", URL: "wss://x.example.com"}))
	s.Error(binding.Validator.ValidateStruct(Body{Lang: "French"}))
	s.Error(binding.Validator.ValidateStruct(Body{URL: "http://x.example.com"}))
}

func (s *ValidationTestSuite) TestFormatValidationError() {
	type Body struct {
		Email string `validate:"required,email"`
		Age   int    `validate:"min=18"`
		Name  string `validate:"required"`
	}

	formatted := FormatValidationError(s.validator.Struct(Body{Email: "nope", Age: 10}))
	s.Require().Len(formatted, 3)

	tags := map[string]string{}
	for _, e := range formatted {
		tags[e.Field] = e.Tag
		s.NotEmpty(e.Message)
	}
	s.Equal(map[string]string{"Email": "email", "Age": "min", "Name": "required"}, tags)
}

func (s *ValidationTestSuite) TestFormatValidationErrorOthers() {
	s.Nil(FormatValidationError(nil))
	s.Nil(FormatValidationError(assert.AnError))
}

func (s *ValidationTestSuite) TestFormatValidationErrorWrapped() {
	type TestStruct struct {
		Name string `validate:"required"`
	}

	err := s.validator.Struct(TestStruct{})
	s.Require().Error(err)

	formatted := FormatValidationError(fmt.Errorf("decode payload: %w", err))
	s.Require().Len(formatted, 1)
	s.Equal("Name", formatted[0].Field)
}

// CustomTagsTestSuite tests the validator returned by New
type CustomTagsTestSuite struct {
	suite.Suite
	validator *validator.Validate
}

func (s *CustomTagsTestSuite) SetupTest() {
	s.validator = New()
}

func TestCustomTagsTestSuite(t *testing.T) {
	suite.Run(t, new(CustomTagsTestSuite))
}

func (s *CustomTagsTestSuite) TestWSURLAlias() {
	type TestStruct struct {
		URL string `validate:"wsurl"`
	}

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "valid - wss", url: "wss://sig.example.com/rtms"},
		{name: "valid - ws with port", url: "ws://127.0.0.1:8080"},
		{name: "invalid - https", url: "https://sig.example.com", wantErr: true},
		{name: "invalid - no scheme", url: "sig.example.com", wantErr: true},
		{name: "invalid - empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.validator.Struct(TestStruct{URL: tt.url})
			if tt.wantErr {
				s.Require().Error(err)
			} else {
				s.Require().NoError(err)
			}
		})
	}
}

func (s *CustomTagsTestSuite) TestMeetingIDAlias() {
	type TestStruct struct {
		MeetingID string `validate:"meetingid"`
	}

	s.NoError(s.validator.Struct(TestStruct{MeetingID: "4444AAAiAAAAAiAiAiiAii=="}))
	s.NoError(s.validator.Struct(TestStruct{MeetingID: "/abc//def+"}))
	s.Error(s.validator.Struct(TestStruct{MeetingID: ""}))
	s.Error(s.validator.Struct(TestStruct{MeetingID: "café"}))
}

func (s *CustomTagsTestSuite) TestLangCodeRegistered() {
	type TestStruct struct {
		Lang string `validate:"omitempty,langcode"`
	}

	s.NoError(s.validator.Struct(TestStruct{}))
	s.NoError(s.validator.Struct(TestStruct{Lang: "ja"}))
	s.Error(s.validator.Struct(TestStruct{Lang: "Japanese"}))
}
