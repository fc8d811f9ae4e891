package utils

import (
	"context"
	"fmt"
)

// MailBox connects NP threads pairwise with unbuffered channels, so a post
// completes only when the target thread has taken the message.
type MailBox[T any] struct {
	NP    int
	boxes [][]chan T // boxes[from][to]
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:    NP,
		boxes: make([][]chan T, NP),
	}
	for from := 0; from < NP; from++ {
		mb.boxes[from] = make([]chan T, NP)
		for to := 0; to < NP; to++ {
			if to != from {
				mb.boxes[from][to] = make(chan T)
			}
		}
	}
	return mb
}

func (mb *MailBox[T]) checkPair(myThread, otherThread int) {
	if myThread < 0 || myThread >= mb.NP || otherThread < 0 || otherThread >= mb.NP {
		panic(fmt.Sprintf("thread pair (%d,%d) out of bounds [0,%d)", myThread, otherThread, mb.NP))
	}
	if myThread == otherThread {
		panic(fmt.Sprintf("thread %d can not message itself", myThread))
	}
}

// PostMessage blocks until targetThread receives msg or ctx is done.
func (mb *MailBox[T]) PostMessage(ctx context.Context, myThread, targetThread int, msg T) error {
	mb.checkPair(myThread, targetThread)
	select {
	case mb.boxes[myThread][targetThread] <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveMessage blocks until sourceThread posts to myThread or ctx is done.
func (mb *MailBox[T]) ReceiveMessage(ctx context.Context, myThread, sourceThread int) (msg T, err error) {
	mb.checkPair(myThread, sourceThread)
	select {
	case msg = <-mb.boxes[sourceThread][myThread]:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket finds the partition holding index k, -1 if k is out of range.
func (pm *PartitionMap) GetBucket(k int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(k)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(k int) (tryCount, bucketNum, min, max int) {
	if k < 0 || k >= pm.MaxIndex {
		return 0, -1, 0, 0
	}
	// Initial guess
	bucketNum = int(float64(pm.ParallelDegree*k) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= k && pm.Partitions[bucketNum][1] > k) {
		if pm.Partitions[bucketNum][0] > k {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (kMax int) {
	if bn == -1 {
		kMax = pm.MaxIndex
		return
	}
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	kMax = k2 - k1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// Split one dimension into ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}
