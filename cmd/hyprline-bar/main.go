// hyprline-bar would be the status-bar presentation layer that renders the
// observer hub's state; it is intentionally out of scope for this
// repository, which implements the hub daemon only.
package main

func main() {}
