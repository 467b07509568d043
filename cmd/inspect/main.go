// Command inspect dumps the persisted snapshot (rooms and identities)
// from a badger database as tables, for debugging live deployments.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"parley/repositories"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	showUsers := flag.Bool("users", true, "Dump identities")
	showRooms := flag.Bool("rooms", true, "Dump rooms")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repo := repositories.NewSnapshotRepository(db, slog.Default(), 0)

	if *showUsers {
		if err := dumpIdentities(repo); err != nil {
			log.Fatal(err)
		}
	}
	if *showRooms {
		if err := dumpRooms(repo); err != nil {
			log.Fatal(err)
		}
	}
}

func dumpIdentities(repo *repositories.SnapshotRepository) error {
	records, err := repo.LoadIdentities()
	if err != nil {
		return err
	}

	color.Bold.Println("Identities")
	table := newTable([]string{"Username", "Display Name", "Admin", "Avatar", "Created"})
	for _, rec := range records {
		admin := ""
		if rec.IsAdmin {
			admin = color.Green.Sprint("yes")
		}
		table.Append([]string{
			rec.Username,
			rec.DisplayName,
			admin,
			rec.AvatarURL,
			rec.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	fmt.Println()
	return nil
}

func dumpRooms(repo *repositories.SnapshotRepository) error {
	records, err := repo.LoadRooms()
	if err != nil {
		return err
	}

	color.Bold.Println("Rooms")
	table := newTable([]string{"ID", "Name", "Creator", "Protected", "Members", "Messages", "Created"})
	for _, rec := range records {
		protected := ""
		if rec.PasswordHash != "" {
			protected = color.Yellow.Sprint("yes")
		}
		displayID := rec.ID
		if len(displayID) > 8 {
			displayID = displayID[:8]
		}
		table.Append([]string{
			displayID,
			rec.Name,
			rec.Creator,
			protected,
			strconv.Itoa(len(rec.Members)),
			strconv.Itoa(len(rec.Messages)),
			rec.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
