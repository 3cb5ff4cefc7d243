package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKpictl(t *testing.T) {
	Convey("Given a seeded sqlite database", t, func() {
		db := filepath.Join(t.TempDir(), "kpi.db")
		out, err := execute("seed", "--sqlite", db, "--users", "3", "--sprints", "2", "--tasks", "40")
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "3 users, 2 sprints, 40 tasks")

		Convey("When a digest is requested", func() {
			out, err := execute("report", "--sqlite", db, "--format", "digest")

			Convey("Then the three sections are printed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Team Performance per Sprint")
				So(out, ShouldContainSubstring, "Individual Performance per Sprint")
				So(out, ShouldContainSubstring, "Estimation Accuracy per Sprint")
			})
		})

		Convey("When tables and a workbook are requested", func() {
			book := filepath.Join(t.TempDir(), "kpi.xlsx")
			out, err := execute("report", "--sqlite", db, "--xlsx", book)

			Convey("Then tables are printed and the workbook is written", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Team Performance")
				info, statErr := os.Stat(book)
				So(statErr, ShouldBeNil)
				So(info.Size(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the prompt is requested at a fixed date", func() {
			out, err := execute("report", "--sqlite", db, "--format", "prompt", "--at", "2020-01-01")

			Convey("Then it is wrapped with instructions", func() {
				So(err, ShouldBeNil)
				So(out, ShouldStartWith, "Please provide a brief")
				So(out, ShouldEndWith, "Generate a concise summary:\n")
			})
		})
	})

	Convey("Given bad report flags", t, func() {
		Convey("Then an unknown format is refused", func() {
			_, err := execute("report", "--format", "csv")
			So(err, ShouldNotBeNil)
		})

		Convey("Then a malformed date is refused", func() {
			_, err := execute("report", "--at", "tomorrow")
			So(err, ShouldNotBeNil)
		})

		Convey("Then an unknown source is refused", func() {
			_, err := execute("report", "--source", "ftp")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given bad seed sizes", t, func() {
		Convey("Then the generator refuses them", func() {
			_, err := execute("seed", "--sqlite", filepath.Join(t.TempDir(), "x.db"), "--tasks=-1")
			So(err, ShouldNotBeNil)
		})
	})
}
