package main

import (
	"context"
	"gradewatch-backend/cmd/gradewatch/commands"
	"gradewatch-backend/lib/serviceutil"
	"gradewatch-backend/lib/telemetry"
)

func main() {
	err := telemetry.SetupFromEnv(context.Background(), "gradewatch")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer telemetry.Shutdown(context.Background())
	telemetry.InitSlog(false)

	commands.ExecuteContext(context.Background())
}
