/*
reactor allows to build push based, backpressure aware streams of items, with composable operators and pluggable execution contexts.

A Flux is only a description of a pipeline: a source (Just, FromSlice, Range, Interval, Error, FromCallable) followed by operators (Map, Filter,
FlatMap, Zip, DelayElements, OnErrorReturn, OnErrorResume, SubscribeOn...). Nothing runs until the Flux is subscribed, and every subscription
gets its own state, so the same Flux can be subscribed several times.

Once subscribed, three kinds of Signal flow downstream: Next for each item, then at most one Error or Complete. Demand flows upstream:
a subscriber requests n items through its Subscription, and no item is ever delivered beyond what was requested.

For instance:

- The subscriber requests 1 item, this demand goes up through every operator to the source
- The source emits one item, each operator maps, filters, delays or splits it on its way down
- A Filter dropping an item requests one more item upstream on its behalf, the subscriber demand is never starved
- When the subscriber cancels, every operator cancels its upstream and releases its pending timers

Where the work runs is decided by a Scheduler. Immediate runs everything on the calling goroutine, which makes pipelines deterministic.
A PoolScheduler runs work on a pool of goroutines (backed by ants), sized for CPU bound work or elastic for blocking calls.
Operators needing time (Interval, DelayElements) or another goroutine (SubscribeOn) receive their Scheduler explicitly.

Errors never escape as panics: a failing or panicking user function becomes an Error signal, and cancels everything upstream of it.
Errors reaching a subscriber without an error handler are logged on the diagnostic sink (see SetLogger).

The stepverifier sub-package allows to assert the signals of a Flux in tests.
*/

package reactor
