package commands

import (
	"fmt"

	"gradewatch-backend/lib/configutil"
	"gradewatch-backend/lib/serviceutil"
	"gradewatch-backend/services/watcher"
	"gradewatch-backend/services/watcher/store"

	"github.com/spf13/cobra"
)

var addConfig *string
var addName *string
var addUrl *string
var addDaysOut *int
var addStudentId *string
var addGrade *float64

var forgetConfig *string

func init() {
	addConfig = addCmd.Flags().String("config", "config.json5", "The config file to read.")
	addName = addCmd.Flags().String("name", "", "The student's display name.")
	addUrl = addCmd.Flags().String("url", "", "The student's gradebook url.")
	addDaysOut = addCmd.Flags().Int("days-out", 0, "Days since the student's last activity.")
	addStudentId = addCmd.Flags().String("student-id", "", "The remote student identifier.")
	addGrade = addCmd.Flags().Float64("grade", 0, "The student's current grade, if known.")
	addCmd.MarkFlagRequired("name")
	addCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(addCmd)

	forgetConfig = forgetCmd.Flags().String("config", "config.json5", "The config file to read.")
	rootCmd.AddCommand(forgetCmd)
}

var addCmd = &cobra.Command{
	Use:   "add --name <name> --url <gradebook url> [--days-out <n>] [--student-id <id>] [--grade <n>]",
	Short: "Adds a student to the watch roster.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](*addConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		db, err := cfg.Database.OpenDB(store.Schema)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer db.Close()

		entry := watcher.StudentEntry{
			Name:         *addName,
			GradebookUrl: *addUrl,
			DaysOut:      *addDaysOut,
			StudentId:    *addStudentId,
		}
		if cmd.Flags().Changed("grade") {
			entry.Grade = addGrade
		}

		err = store.NewStore(db).AddStudent(cmd.Context(), entry)
		if err != nil {
			serviceutil.Fatal("failed to add student", err)
		}
		fmt.Printf("added %q\n", entry.Name)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <gradebook key>",
	Short: "Removes a student from the found set so they are watched again.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](*forgetConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		db, err := cfg.Database.OpenDB(store.Schema)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer db.Close()

		err = store.NewStore(db).DeleteFound(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to delete found key", err)
		}
	},
}
