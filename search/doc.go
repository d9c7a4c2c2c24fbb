// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search ranks catalogue controls against arbitrary text.
//
// SuggestControls embeds the query and every control that has text, scores
// each control by cosine similarity, and adds a fixed boost when the control
// text contains every non-stop-word of the query verbatim. It reads the
// catalogue only and never writes mappings.
package search
