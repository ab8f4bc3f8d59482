package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	snet "github.com/mosaicnetworks/skipgraph/src/net"
	"github.com/mosaicnetworks/skipgraph/src/node"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	target       = "127.0.0.1:1337"
	queryTimeout = 2 * time.Second
	byName       bool
	allMatches   bool
)

// NewTableCmd produces the command that prints a remote lookup table.
func NewTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table [num-id]",
		Short: "Print the lookup table of a node",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printTable,
	}
	AddQueryFlags(cmd)
	return cmd
}

// NewSearchCmd produces the command that searches a remote graph.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <key>",
		Short: "Search by numeric id, or by name id with --name",
		Args:  cobra.ExactArgs(1),
		RunE:  search,
	}
	AddQueryFlags(cmd)
	cmd.Flags().BoolVar(&byName, "name", byName, "Treat key as a name id")
	cmd.Flags().BoolVar(&allMatches, "all", allMatches, "With --name, list every node with exactly this name id")
	return cmd
}

// NewPingCmd produces the command that pings a node.
func NewPingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Show the identity and graph size of a node",
		RunE:  ping,
	}
	AddQueryFlags(cmd)
	return cmd
}

//AddQueryFlags adds the flags shared by the query commands
func AddQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&target, "node", "n", target, "host:port of the node to query")
	cmd.Flags().DurationVarP(&queryTimeout, "timeout", "t", queryTimeout, "Request timeout")
}

// withClient runs f with a client bound to an ephemeral TCP underlay that
// serves no requests.
func withClient(f func(ctx context.Context, c *node.Client, host string, port int) error) error {
	host, port, err := node.SplitAddress(target)
	if err != nil {
		return err
	}

	_config.BaseLogger().Level = logrus.WarnLevel
	logger := _config.Logger().WithField("component", "query")

	refuse := snet.HandlerFunc(func(req *snet.Request) (*snet.Response, error) {
		return nil, fmt.Errorf("query client does not serve %s", req.Op)
	})

	trans := snet.NewTCPTransport("127.0.0.1", 1, queryTimeout, logger)
	underlay := snet.NewUnderlay(trans, refuse, "127.0.0.1", queryTimeout, logger)
	if err := underlay.Initialize(0); err != nil {
		return err
	}
	defer underlay.Terminate()

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	return f(ctx, node.NewClient(underlay), host, port)
}

func printTable(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *node.Client, host string, port int) error {
		var numID int64
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			numID = id
		} else {
			p, err := c.Ping(ctx, host, port)
			if err != nil {
				return err
			}
			numID = p.Identity.NumID
		}

		owner, table, err := c.GetTable(ctx, host, port, numID)
		if err != nil {
			return err
		}

		fmt.Printf("owner: %s\n", owner)

		rows := make([][]string, 0, table.Levels())
		for level := 0; level < table.Levels(); level++ {
			left, _ := table.Left(level)
			right, _ := table.Right(level)
			rows = append(rows, []string{
				strconv.Itoa(level),
				describe(left),
				describe(right),
			})
		}

		render([]string{"Level", "Left", "Right"}, rows)
		return nil
	})
}

func search(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *node.Client, host string, port int) error {
		var ids []skipgraph.Identity

		switch {
		case byName && allMatches:
			res, err := c.GetNodesWithNameID(ctx, host, port, args[0])
			if err != nil {
				return err
			}
			ids = res
		case byName:
			id, err := c.SearchByNameID(ctx, host, port, args[0])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		default:
			numID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			id, err := c.SearchByNumID(ctx, host, port, numID)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		rows := make([][]string, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, identityRow(id))
		}

		render([]string{"NumID", "NameID", "Address"}, rows)
		return nil
	})
}

func ping(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *node.Client, host string, port int) error {
		start := time.Now()
		p, err := c.Ping(ctx, host, port)
		if err != nil {
			return err
		}

		row := append(identityRow(p.Identity), strconv.Itoa(p.Size), time.Since(start).String())
		render([]string{"NumID", "NameID", "Address", "Size", "RTT"}, [][]string{row})
		return nil
	})
}

func identityRow(id skipgraph.Identity) []string {
	return []string{
		strconv.FormatInt(id.NumID, 10),
		id.NameID,
		id.FullAddress(),
	}
}

func describe(id *skipgraph.Identity) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func render(header []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}
