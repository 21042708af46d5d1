// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package constants contains values shared by the shardkeep binaries and libraries.
package constants

// Version is the current release, displayed via the `version` subcommand and
// sent in the Cloud KMS user agent.
const Version = "0.1.0"

// UserIDEnv names the environment variable the CLI reads a user ID from when
// --user is not given.
const UserIDEnv = "SHARDKEEP_USER"
