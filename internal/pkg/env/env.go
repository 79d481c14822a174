// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package env reads overrides from the process environment: the vault key,
// the config file path and development toggles.
package env

import (
	"os"
	"strconv"
)

// GetStr returns the named variable, or defaultVal when it is unset.
func GetStr(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// GetBool returns the named variable parsed as a bool. Unset or unparsable
// values fall back to defaultVal.
func GetBool(key string, defaultVal bool) bool {
	valS, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(valS)
	if err != nil {
		return defaultVal
	}
	return b
}
