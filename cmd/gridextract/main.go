/*
Copyright © 2026 the gridextract authors.
This file is part of gridextract.

gridextract is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridextract is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridextract.  If not, see <http://www.gnu.org/licenses/>.
*/


// Command gridextract is a command-line interface for cropping gridded
// climate data and extracting its values at survey locations.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/gridextract/gridutil"
)

func main() {
	if err := gridutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
