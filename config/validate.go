// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/juju/errors"
)

var (
	validate   *validator.Validate
	translator ut.Translator
	initOnce   sync.Once
)

func initValidator() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
}

// Validate checks value ranges of the configuration. Violations are reported in English
// with the configuration key of each field.
func (config *Config) Validate() error {
	initOnce.Do(initValidator)
	err := validate.Struct(config)
	if err == nil {
		if config.Model.MinK > config.Model.K {
			return errors.NotValidf("model.min_k %v greater than model.k %v", config.Model.MinK, config.Model.K)
		}
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Trace(err)
	}
	var messages []string
	for _, fieldError := range validationErrors {
		// strip the root struct name
		_, key, _ := strings.Cut(fieldError.Namespace(), ".")
		messages = append(messages, key+": "+fieldError.Translate(translator))
	}
	sort.Strings(messages)
	return errors.NewNotValid(nil, strings.Join(messages, "; "))
}
