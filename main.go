package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/samuelfneumann/offlinerl/accelerator"
	_ "github.com/samuelfneumann/offlinerl/agent/textagent"
	"github.com/samuelfneumann/offlinerl/experiment"
)

func main() {
	configFile := flag.String("config", "", "JSON experiment configuration")
	seed := flag.Uint64("seed", 192382, "seed of the replay buffer")
	saveDir := flag.String("save", ".", "directory to save data and "+
		"checkpoints in")
	flag.Parse()

	if *configFile == "" {
		log.Fatalf("no configuration file given, use -config")
	}

	data, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatalf("could not read configuration: %v", err)
	}
	var config experiment.Config
	if err := json.Unmarshal(data, &config); err != nil {
		log.Fatalf("could not parse configuration: %v", err)
	}

	if err := os.MkdirAll(*saveDir, 0755); err != nil {
		log.Fatalf("could not create save directory: %v", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	logger.Printf("training on %v", accelerator.Device())

	exp, err := config.CreateExp(*seed, *saveDir, logger)
	if err != nil {
		log.Fatalf("could not create experiment: %v", err)
	}

	if err := exp.Run(); err != nil {
		log.Fatalf("could not run experiment: %v", err)
	}
	if err := exp.Save(); err != nil {
		log.Fatalf("could not save experiment data: %v", err)
	}
}
