/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package present

import (
	"layoutalign/internal/align"
	"layoutalign/internal/geom"
)

// Session binds a tool to a presenter and serves the tool's deactivation
// requests right away, as an interactive host does.
type Session struct {
	Tool *align.Tool
	Out  Presenter
}

// Handle presents c and returns it.
func (s Session) Handle(c align.Changes) align.Changes {
	opts := s.Tool.Options()
	Apply(s.Out, c, opts)
	if c.Deactivate {
		Apply(s.Out, s.Tool.Deactivate(), opts)
	}
	return c
}

func (s Session) Activate(viewVisible bool) align.Changes {
	return s.Handle(s.Tool.Activate(viewVisible))
}

func (s Session) Move(p geom.DPoint) align.Changes {
	return s.Handle(s.Tool.MouseMoved(p, true))
}

func (s Session) Click(p geom.DPoint, b align.Buttons) align.Changes {
	return s.Handle(s.Tool.MouseClicked(p, b, true))
}

// Pick moves to p and left-clicks there, the way a user commits a feature.
func (s Session) Pick(p geom.DPoint) align.Changes {
	s.Move(p)
	return s.Click(p, align.ButtonLeft)
}
