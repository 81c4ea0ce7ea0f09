// Command mediaprep queues media files, processes them through their planned
// transformation steps, and uploads the finished renditions.
package main
