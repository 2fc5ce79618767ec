/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package validation provides the validation functions for user-provided
// values such as incoming operations and snapshot names.
package validation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

const (
	// NOTE: regular expression is referenced unreserved characters
	// (https://datatracker.ietf.org/doc/html/rfc3986#section-2.3)
	slugRegexString = `^[a-zA-Z0-9\-._~]+$`
)

var slugRegex = regexp.MustCompile(slugRegexString)

var (
	// defaultValidator is the default validation instance used in this
	// package. Some fields are provided by the user and need validation.
	defaultValidator = validator.New()
	// defaultEn is the default translator instance for the 'en' locale.
	defaultEn = en.New()
	// uni is the UniversalTranslator instance set with the fallback locale
	// and locales it should support.
	uni = ut.New(defaultEn, defaultEn)

	// trans is the specified translator for the given locale, or fallback
	// if not found.
	trans, _ = uni.GetTranslator(defaultEn.Locale())
)

// Violation is the error returned by the validation.
type Violation struct {
	Tag         string
	Field       string
	Err         error
	Description string
}

// Error returns the error message.
func (v Violation) Error() string {
	return v.Err.Error()
}

// StructError is the error returned by the validation of a struct.
type StructError struct {
	Violations []Violation
}

// Error returns the error message.
func (s StructError) Error() string {
	sb := strings.Builder{}

	for _, v := range s.Violations {
		sb.WriteString(v.Error())
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String())
}

// RegisterValidation is a shortcut of defaultValidator.RegisterValidation
// that registers a custom validation with the given tag.
func RegisterValidation(tag string, fn validator.Func) error {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("register validation: %w", err)
	}
	return nil
}

// RegisterTranslation registers a translation against the provided tag.
func RegisterTranslation(tag, msg string) error {
	if err := defaultValidator.RegisterTranslation(
		tag,
		trans,
		func(ut ut.Translator) error {
			if err := ut.Add(tag, msg, true); err != nil {
				return fmt.Errorf("register translation: %w", err)
			}
			return nil
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	); err != nil {
		return fmt.Errorf("register translation: %w", err)
	}
	return nil
}

// ValidateValue validates the value with the tag.
func ValidateValue(v interface{}, tag string) error {
	if err := defaultValidator.Var(v, tag); err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			return Violation{
				Tag:         e.Tag(),
				Err:         e,
				Description: e.Translate(trans),
			}
		}
	}
	return nil
}

// ValidateStruct validates the struct using its validate tags.
func ValidateStruct(s interface{}) error {
	if err := defaultValidator.Struct(s); err != nil {
		structError := &StructError{}
		for _, e := range err.(validator.ValidationErrors) {
			structError.Violations = append(structError.Violations, Violation{
				Tag:         e.Tag(),
				Field:       e.StructField(),
				Err:         e,
				Description: e.Translate(trans),
			})
		}
		return structError
	}

	return nil
}

func init() {
	if err := entranslations.RegisterDefaultTranslations(defaultValidator, trans); err != nil {
		fmt.Fprintln(os.Stderr, "validation register default translations:", err)
		os.Exit(1)
	}

	if err := RegisterValidation("slug", func(level validator.FieldLevel) bool {
		return slugRegex.MatchString(level.Field().String())
	}); err != nil {
		fmt.Fprintln(os.Stderr, "validation slug:", err)
		os.Exit(1)
	}
	if err := RegisterTranslation(
		"slug",
		"{0} must only contain letters, numbers, hyphen, period, underscore, and tilde",
	); err != nil {
		fmt.Fprintln(os.Stderr, "validation slug:", err)
		os.Exit(1)
	}
}
