package main

import (
	"fmt"
	"slices"

	"github.com/abelbrown/tailfeed/internal/render"
)

type planCommand struct {
	Limit     int  `long:"limit" description:"Messages to plan (default: ui.message_limit from config)"`
	Threshold int  `long:"threshold" description:"Override the virtualization threshold"`
	Heights   bool `long:"heights" description:"Print every estimated height"`

	Args struct {
		Conversation string `positional-arg-name:"conversation"`
	} `positional-args:"yes" required:"yes"`
}

func (c *planCommand) Execute([]string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rcfg := cfg.RenderSettings()
	if c.Threshold > 0 {
		rcfg.Threshold = c.Threshold
	}
	limit := cfg.UI.MessageLimit
	if c.Limit > 0 {
		limit = c.Limit
	}

	st, err := openDB()
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.Messages(c.Args.Conversation, limit)
	if err != nil {
		return err
	}

	planner := render.NewPlanner(rcfg)
	plan := planner.Plan(items)

	mode := "measured"
	if plan.Virtualize {
		mode = "virtualized"
	}
	fmt.Printf("conversation  %s\n", c.Args.Conversation)
	fmt.Printf("items         %d (threshold %d)\n", plan.Len(), rcfg.Threshold)
	fmt.Printf("mode          %s\n", mode)
	if total, ok := plan.Total(); ok {
		fmt.Printf("total         %d units (%d rows)\n", total, (total+rcfg.LineHeight-1)/rcfg.LineHeight)
	} else {
		fmt.Printf("total         - (measured at render time)\n")
	}

	if plan.Len() == 0 {
		return nil
	}

	images := 0
	for _, it := range items {
		if it.HasImage {
			images++
		}
	}
	sum := 0
	for _, h := range plan.Heights {
		sum += h
	}
	fmt.Printf("heights       min %d  max %d  mean %.1f\n",
		slices.Min(plan.Heights), slices.Max(plan.Heights), float64(sum)/float64(plan.Len()))
	fmt.Printf("images        %d\n", images)

	if c.Heights {
		fmt.Println()
		for i, it := range items {
			fmt.Printf("%6d  %-36s  len=%-5d img=%-5v  %d\n",
				it.Seq, it.ID, it.ContentLength(), it.HasImage, plan.Heights[i])
		}
	}
	return nil
}
