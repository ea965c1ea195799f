//go:build ignore

// Generates a sample remediation CSV for local development:
//
//	go run scripts/seed_dataset.go -out data/remediation_sites.csv -rows 60
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	agencies = []string{"Zigma", "Saurashtra", "Tharuni"}
	clusters = []string{"Nellore", "Chittor", "Tirupathi", "GVMC", "Kurnool", "Erode", "Guntur", "Gujarat"}
	machines = []string{"Excavator", "Truck", "Loader", "Compactor"}
)

func main() {
	out := flag.String("out", "data/remediation_sites.csv", "output path")
	rows := flag.Int("rows", 60, "number of rows")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"Agency", "Cluster", "Site", "Machine",
		"Quantity to be remediated in MT", "Cumulative Quantity remediated till date in MT",
		"Quantity remediated today", "Daily_Capacity",
		"days_required", "days_to_sept30", "Active_site",
		"start_date", "planned_end_date", "expected_end_date",
	}
	if err := w.Write(header); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	base := time.Now()
	for i := 0; i < *rows; i++ {
		total := float64(rand.Intn(900) + 100)
		done := total * rand.Float64() * 0.8
		active := "no"
		if rand.Intn(2) == 0 {
			active = "yes"
		}
		daysRequired := ""
		if rand.Intn(5) != 0 { // leave some blank
			daysRequired = fmt.Sprintf("%.1f", 30+rand.Float64()*90)
		}
		machineList := machines[rand.Intn(len(machines))]
		if rand.Intn(3) == 0 {
			machineList += ", " + machines[rand.Intn(len(machines))]
		}

		row := []string{
			agencies[rand.Intn(len(agencies))],
			clusters[rand.Intn(len(clusters))],
			fmt.Sprintf("Site %c %d", 'A'+rand.Intn(5), i),
			machineList,
			fmt.Sprintf("%.0f", total),
			fmt.Sprintf("%.1f", done),
			fmt.Sprintf("%.1f", rand.Float64()*40),
			fmt.Sprintf("%.1f", 10+rand.Float64()*40),
			daysRequired,
			fmt.Sprintf("%d", 50+rand.Intn(100)),
			active,
			base.AddDate(0, 0, -rand.Intn(30)).Format("2006-01-02"),
			base.AddDate(0, 0, 30+rand.Intn(70)).Format("2006-01-02"),
			base.AddDate(0, 0, 30+rand.Intn(90)).Format("2006-01-02"),
		}
		if err := w.Write(row); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	fmt.Printf("wrote %d rows to %s\n", *rows, *out)
}
