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

package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/coedit-team/coedit/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Coedit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("Coedit: %s\n", version.Version)
			if version.BuildDate != "" {
				cmd.Printf("Build date: %s\n", version.BuildDate)
			}
			cmd.Printf("Go: %s\n", runtime.Version())
			cmd.Printf("Platform: %s\n", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
