/*
Copyright © 2023 the EIS authors.
This file is part of EIS.

EIS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

EIS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with EIS.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command eis is a command-line interface for the EIS mineral prospectivity
// toolkit.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/eis/eisutil"
	"github.com/spatialmodel/eis/nn"
	"github.com/spatialmodel/eis/nn/gomlxnn"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
	nn.Register(gomlxnn.Name, gomlxnn.New())
}

func main() {
	if err := eisutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
