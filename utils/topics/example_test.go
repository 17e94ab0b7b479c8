package topics_test

import (
	"fmt"
	"sync"

	"github.com/PowerDNS/deltasnap/utils/topics"
)

func Example() {
	t := topics.New[string]()
	t.Publish("tick 1") // nobody is listening yet

	if last, ok := t.Last(); ok {
		fmt.Printf("last=%s\n", last)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	sub := t.Subscribe(false)
	ch := sub.Channel()
	go func() {
		defer wg.Done()
		for m := range ch {
			fmt.Printf("received=%s\n", m)
		}
		fmt.Println("channel closed")
	}()

	t.Publish("tick 2")
	t.Publish("tick 3")
	sub.Close()
	wg.Wait()

	t.Publish("tick 4")
	if last, ok := t.Last(); ok {
		fmt.Printf("last=%s\n", last)
	}

	// Output:
	// last=tick 1
	// received=tick 2
	// received=tick 3
	// channel closed
	// last=tick 4
}
